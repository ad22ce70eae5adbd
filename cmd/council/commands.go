package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vango-go/vai-council/pkg/core/council"
	"github.com/vango-go/vai-council/pkg/core/credentials"
	"github.com/vango-go/vai-council/pkg/core/voice/stt"
)

func runAuto(ctx context.Context, c *cli, args []string) (err error) {
	fs := c.flagSet("auto")
	topic := fs.String("topic", "", "discussion topic (or pass it as arguments)")
	duration := fs.Int("duration", 2, "target length in minutes")
	out := fs.String("out", "", "directory for per-message WAV files")
	realtime := fs.Bool("realtime", false, "pace output at speaking speed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topic == "" {
		*topic = strings.Join(fs.Args(), " ")
	}
	if strings.TrimSpace(*topic) == "" {
		return usageError{"a topic is required"}
	}

	a, err := c.open()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	stdout := c.stdout()
	fmt.Fprintf(stdout, "Convening the council on %q...\n", *topic)
	sess, err := a.council.StartCouncil(ctx, *topic, *duration)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d panelists, %d messages\n\n", len(sess.Panelists), len(sess.Messages))

	sink := newConsoleSink(stdout, *out, *realtime, a.cfg.Murf.SampleRate)
	return council.NewPlayer(a.council, sink, a.logger).Play(ctx)
}

func runLive(ctx context.Context, c *cli, args []string) (err error) {
	fs := c.flagSet("live")
	kind := fs.String("kind", string(council.KindDiscussion), "session kind: discussion, debate or interview")
	topic := fs.String("topic", "", "topic, debate motion or job title")
	content := fs.String("content", "", "interview job description and candidate background")
	contentFile := fs.String("content-file", "", "read -content from a file")
	audio := fs.String("audio", "", "comma-separated recordings to transcribe as your turns instead of reading stdin")
	out := fs.String("out", "", "directory for per-message WAV files")
	realtime := fs.Bool("realtime", false, "pace output at speaking speed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *contentFile != "" {
		data, err := os.ReadFile(*contentFile)
		if err != nil {
			return fmt.Errorf("read content file: %w", err)
		}
		*content = string(data)
	}
	if !council.Kind(*kind).Valid() {
		return usageError{fmt.Sprintf("unknown kind %q", *kind)}
	}

	a, err := c.open()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	stdout := c.stdout()
	sess, err := a.council.Initialize(ctx, *topic, 0, council.Kind(*kind), council.ModeLive, *content)
	if err != nil {
		return err
	}
	started := time.Now()
	var firstPlayed time.Time

	player := council.NewPlayer(a.council, newConsoleSink(stdout, *out, *realtime, a.cfg.Murf.SampleRate), a.logger)
	play := func(i int) error {
		if firstPlayed.IsZero() {
			firstPlayed = time.Now()
		}
		return player.PlayMessage(ctx, i)
	}

	opening, err := a.council.GenerateInitialLiveContent(ctx)
	if err != nil {
		return err
	}
	for i := range opening {
		if err := play(i); err != nil {
			return err
		}
	}

	next := stdinTurns(c, stdout)
	if *audio != "" {
		next = audioTurns(ctx, a.transcriber, strings.Split(*audio, ","), stdout)
	}

	for {
		text, ok := next()
		if !ok || text == "/quit" {
			break
		}
		if text == "" {
			continue
		}
		if err := a.council.AddUserMessage(text); err != nil {
			fmt.Fprintf(stdout, "(%v)\n", err)
			continue
		}
		msg, err := a.council.GenerateLiveResponse(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			fmt.Fprintln(stdout, "(the panel could not respond, say something to try again)")
			a.council.FinishResponse()
			continue
		}
		if err := play(len(a.council.CurrentSession().Messages) - 1); err != nil {
			return err
		}
		a.council.FinishResponse()
	}

	a.council.UpdateSessionMetrics(time.Since(started), firstPlayed)
	fmt.Fprintf(stdout, "\nSession %s saved.\n", sess.ID)
	return nil
}

// stdinTurns reads one user turn per line.
func stdinTurns(c *cli, stdout io.Writer) func() (string, bool) {
	if c.deps.stdin == nil {
		return func() (string, bool) { return "", false }
	}
	sc := bufio.NewScanner(c.deps.stdin)
	return func() (string, bool) {
		fmt.Fprint(stdout, "> ")
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}
}

// audioTurns transcribes each recording into a user turn. Recordings with
// no speech are skipped.
func audioTurns(ctx context.Context, t stt.Provider, paths []string, stdout io.Writer) func() (string, bool) {
	return func() (string, bool) {
		for len(paths) > 0 {
			path := strings.TrimSpace(paths[0])
			paths = paths[1:]
			text, err := transcribeFile(ctx, t, path)
			if errors.Is(err, stt.ErrNoSpeech) {
				fmt.Fprintf(stdout, "(no speech detected in %s)\n", path)
				continue
			}
			if err != nil {
				fmt.Fprintf(stdout, "(could not transcribe %s: %v)\n", path, err)
				continue
			}
			fmt.Fprintf(stdout, "You: %s\n", text)
			return text, true
		}
		return "", false
	}
}

func transcribeFile(ctx context.Context, t stt.Provider, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	tr, err := t.Transcribe(ctx, f, stt.TranscribeOptions{})
	if err != nil {
		return "", err
	}
	return tr.Text, nil
}

func runHistory(ctx context.Context, c *cli, args []string) (err error) {
	fs := c.flagSet("history")
	del := fs.String("delete", "", "delete the session with this id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	stdout := c.stdout()
	if *del != "" {
		if err := a.history.Delete(*del); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted %s\n", *del)
		return nil
	}

	entries, err := a.history.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "no saved sessions")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "%s  %s  %dmin  %3d messages  %s\n",
			e.ID, e.Created().Format("2006-01-02 15:04"), e.SelectedDuration, len(e.Script), e.Topic)
	}
	return nil
}

func runReplay(ctx context.Context, c *cli, args []string) (err error) {
	fs := c.flagSet("replay")
	id := fs.String("id", "", "session id from council history")
	out := fs.String("out", "", "directory for per-message WAV files")
	realtime := fs.Bool("realtime", false, "pace output at speaking speed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return usageError{"-id is required"}
	}

	a, err := c.open()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	entry, ok, err := a.history.Get(*id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %q not found", *id)
	}
	if _, err := a.council.ReplaySession(ctx, entry); err != nil {
		return err
	}
	sink := newConsoleSink(c.stdout(), *out, *realtime, a.cfg.Murf.SampleRate)
	return council.NewPlayer(a.council, sink, a.logger).Play(ctx)
}

func runKeys(ctx context.Context, c *cli, args []string) (err error) {
	fs := c.flagSet("keys")
	values := map[credentials.Kind]*string{
		credentials.LLM:           fs.String("cerebras", "", "set the Cerebras API key"),
		credentials.Synthesis:     fs.String("murf", "", "set the Murf API key"),
		credentials.Transcription: fs.String("assemblyai", "", "set the AssemblyAI API key"),
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	for _, kind := range credentials.Kinds {
		if v := strings.TrimSpace(*values[kind]); v != "" {
			if err := a.keys.Set(kind, v); err != nil {
				return err
			}
		}
	}

	stdout := c.stdout()
	for _, kind := range credentials.Kinds {
		v, err := a.keys.Get(kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%-18s %s\n", kind, credentials.Mask(v))
	}
	if err := a.keys.Validate(); err != nil {
		fmt.Fprintf(stdout, "\n%v\n", err)
	}
	return nil
}

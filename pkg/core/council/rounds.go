package council

// RoundOf returns the round that message index belongs to.
func RoundOf(index, size int) int {
	if size <= 0 || index < 0 {
		return 0
	}
	return index / size
}

// RoundBounds returns the half-open message range [start, end) of round k,
// clipped to total messages. An empty range means the round does not exist.
func RoundBounds(k, size, total int) (start, end int) {
	if size <= 0 || k < 0 {
		return 0, 0
	}
	start = min(k*size, total)
	end = min(start+size, total)
	return start, end
}

// RoundCount returns the number of rounds total messages span.
func RoundCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// RoundProgress returns how far through its round message index is, in
// [0, 1).
func RoundProgress(index, size int) float64 {
	if size <= 0 || index < 0 {
		return 0
	}
	return float64(index%size) / float64(size)
}

// Responder returns the roster position that answers in live discussion
// after currentRound user messages. Before any user message the first
// panelist answers.
func Responder(currentRound, size int) int {
	if size <= 0 || currentRound < 1 {
		return 0
	}
	return (currentRound - 1) % size
}

// Window returns the last n turns.
func Window(turns []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

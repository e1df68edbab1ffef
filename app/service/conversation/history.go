package conversation

// tail returns the last n messages oldest-first, as a fresh slice.
func tail(messages []Message, n int) []Message {
	if n <= 0 || len(messages) == 0 {
		return []Message{}
	}

	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}

	result := make([]Message, len(messages))
	copy(result, messages)

	return result
}

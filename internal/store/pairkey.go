package store

// PairChatID derives the stable id of a private conversation: the two
// participant ids sorted lexicographically and joined. Both directions of
// the pair always resolve to the same conversation.
func PairChatID(a, b string) string {
	a, b = orderPair(a, b)
	return a + ":" + b
}

func orderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

package db

// TagFilter builds an FT.SEARCH TAG pre-filter for one field/value pair.
func TagFilter(field, value string) string {
	return "@" + field + ":{" + escapeTag(value) + "}"
}

// escapeTag escapes characters with special meaning inside TAG braces.
func escapeTag(value string) string {
	out := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case ' ', ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
			'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+', '=',
			'~', '|', '/', '\\':
			out = append(out, '\\', value[i])
		default:
			out = append(out, value[i])
		}
	}
	return string(out)
}

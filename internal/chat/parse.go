package chat

import (
	"strings"
)

// line is one parsed IRC message: optional @tags, optional :prefix, a
// command and its params, with the trailing param separated.
type line struct {
	Tags     map[string]string
	Prefix   string
	Command  string
	Params   []string
	Trailing string
}

// parseLine splits a raw IRC line. Twitch sends IRCv3 message tags when the
// tags capability is requested; badges and display-name arrive there.
func parseLine(raw string) line {
	l := line{Tags: map[string]string{}}
	rest := strings.TrimRight(raw, "\r\n")

	if strings.HasPrefix(rest, "@") {
		var tags string
		tags, rest, _ = strings.Cut(rest[1:], " ")
		for _, pair := range strings.Split(tags, ";") {
			key, value, _ := strings.Cut(pair, "=")
			l.Tags[key] = unescapeTag(value)
		}
	}

	if strings.HasPrefix(rest, ":") {
		l.Prefix, rest, _ = strings.Cut(rest[1:], " ")
	}

	if body, trailing, found := strings.Cut(rest, " :"); found {
		rest = body
		l.Trailing = trailing
	}

	fields := strings.Fields(rest)
	if len(fields) > 0 {
		l.Command = fields[0]
		l.Params = fields[1:]
	}
	return l
}

// unescapeTag decodes the IRCv3 tag value escapes.
func unescapeTag(value string) string {
	if !strings.Contains(value, "\\") {
		return value
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i+1 == len(value) {
			b.WriteByte(value[i])
			continue
		}
		i++
		switch value[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

// senderNick extracts the nick from an IRC prefix of the form
// nick!user@host.
func senderNick(prefix string) string {
	nick, _, _ := strings.Cut(prefix, "!")
	return nick
}

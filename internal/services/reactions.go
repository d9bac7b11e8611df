package services

import "github.com/clawlink/clawlink/internal/apperr"

// The closed reaction set. Input accepts either the name or the emoji;
// output always carries the emoji.
var reactionsByName = map[string]string{
	"like":  "👍",
	"love":  "❤️",
	"angry": "😠",
	"sad":   "😢",
}

var reactionEmojis = func() map[string]struct{} {
	set := make(map[string]struct{}, len(reactionsByName))
	for _, e := range reactionsByName {
		set[e] = struct{}{}
	}
	return set
}()

// NormalizeReaction maps a reaction name or emoji to its canonical emoji.
func NormalizeReaction(input string) (string, error) {
	if emoji, ok := reactionsByName[input]; ok {
		return emoji, nil
	}
	if _, ok := reactionEmojis[input]; ok {
		return input, nil
	}
	return "", apperr.Newf(apperr.Invalid, "unknown reaction %q; use like, love, angry, or sad", input)
}

package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JoinMillis encodes epoch milliseconds as a comma-joined string.
func JoinMillis(millis []int64) string {
	parts := make([]string, len(millis))
	for i, ms := range millis {
		parts[i] = strconv.FormatInt(ms, 10)
	}
	return strings.Join(parts, ",")
}

// SplitMillis decodes a comma-joined list of epoch milliseconds.
// An empty string is an empty list.
func SplitMillis(value string) ([]int64, error) {
	if value == "" {
		return []int64{}, nil
	}

	parts := strings.Split(value, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		ms, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMillis, p)
		}
		out = append(out, ms)
	}
	return out, nil
}

// JoinKeys encodes trigger keys as a comma-joined string.
func JoinKeys(keys []string) string {
	return strings.Join(keys, ",")
}

// SplitKeys decodes a comma-joined list of trigger keys.
func SplitKeys(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}

func encodeTriggers(triggers []Trigger) (dates, keys string) {
	millis := make([]int64, len(triggers))
	ks := make([]string, len(triggers))
	for i, t := range triggers {
		millis[i] = t.At.UnixMilli()
		ks[i] = t.Key
	}
	return JoinMillis(millis), JoinKeys(ks)
}

func decodeTriggers(dates, keys string) ([]Trigger, error) {
	millis, err := SplitMillis(dates)
	if err != nil {
		return nil, err
	}

	ks := SplitKeys(keys)
	if len(ks) != len(millis) {
		// rows written before trigger keys existed carry no keys at all
		if len(ks) != 0 {
			return nil, fmt.Errorf("%w: %d dates, %d keys", ErrTriggerKeyMismatch, len(millis), len(ks))
		}
		ks = make([]string, len(millis))
	}

	out := make([]Trigger, len(millis))
	for i, ms := range millis {
		out[i] = Trigger{Key: ks[i], At: time.UnixMilli(ms).UTC()}
	}
	return out, nil
}

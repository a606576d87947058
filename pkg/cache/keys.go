package cache

import (
	"fmt"
	"strconv"
	"strings"
)

const keySep = ":"

// Key joins namespace and parts into a single cache key, e.g. Key("history", "prices", "BTC", 30)
// yields "history:prices:BTC:30". Empty parts are kept so filters stay positional.
func Key(namespace string, parts ...interface{}) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteString(keySep)
		switch v := p.(type) {
		case string:
			b.WriteString(v)
		case int:
			b.WriteString(strconv.Itoa(v))
		case int64:
			b.WriteString(strconv.FormatInt(v, 10))
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// Pattern matches every key under namespace.
func Pattern(namespace string) string {
	return namespace + keySep + "*"
}

// LockKey names the distributed lock guarding a task.
func LockKey(task string) string {
	return Key("lock", "task", task)
}

package ratelimit

import (
	"strconv"
	"time"
)

// Formatação de valores numéricos em headers sem passar por fmt.

func formatInt(v int) string { return strconv.Itoa(v) }

func formatUnix(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

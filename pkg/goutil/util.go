package goutil

import (
	"time"
)

func ContainsStr(arr []string, str string) bool {
	for _, v := range arr {
		if v == str {
			return true
		}
	}
	return false
}

func ContainsUint32(arr []uint32, i uint32) bool {
	for _, v := range arr {
		if v == i {
			return true
		}
	}
	return false
}

// DayBucket truncates a unix timestamp to the start of its UTC day.
func DayBucket(unix uint64) uint64 {
	t := time.Unix(int64(unix), 0).UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return uint64(day.Unix())
}

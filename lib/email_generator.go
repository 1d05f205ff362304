package lib

import (
	"fmt"
	"math/rand"
	"time"
)

const charset = "abcdefghijklmnopqrstuvwxyz"

var (
	seededRand *rand.Rand = rand.New(
		rand.NewSource(time.Now().UnixMilli()))

	sampleSubjects = []string{
		"A little message, just for you",
		"Meeting notes",
		"Your invoice is ready",
		"Re: weekend plans",
		"Quarterly report",
	}
	sampleFlags = []string{FlagSeen, FlagFlagged, FlagAnswered, FlagJunk}
	sampleTags  = []string{"Work", "family", "Écoles", "receipts", "travel"}
)

func stringWithCharset(length int, charset string) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}

// GenerateAddress returns a random address at example.com
func GenerateAddress() string {
	return stringWithCharset(3+seededRand.Intn(8), charset) + "@example.com"
}

// GenerateSubject picks a subject and appends a sequence number
func GenerateSubject(seq int) string {
	return fmt.Sprintf("%s #%d", sampleSubjects[seededRand.Intn(len(sampleSubjects))], seq)
}

// GenerateFlags returns between 0 and maxFlags-1 distinct flags
func GenerateFlags(maxFlags int) []string {
	return pick(sampleFlags, maxFlags)
}

// GenerateTags returns between 0 and maxTags-1 distinct tags
func GenerateTags(maxTags int) []string {
	return pick(sampleTags, maxTags)
}

// GenerateDateFrom returns a random date between from and now
func GenerateDateFrom(from time.Time) time.Time {
	span := time.Since(from)
	if span <= 1 {
		return time.Now()
	}
	return from.Add(time.Duration(seededRand.Int63n(int64(span)-1) + 1))
}

// GenerateSize returns a message size between minSize and maxSize bytes
func GenerateSize(minSize, maxSize int) uint32 {
	if maxSize <= minSize {
		return uint32(minSize)
	}
	return uint32(minSize + seededRand.Intn(maxSize-minSize))
}

func pick(source []string, max int) []string {
	if max <= 1 {
		return []string{}
	}
	count := seededRand.Intn(max)
	if count > len(source) {
		count = len(source)
	}
	output := make([]string, 0, count)
	for _, index := range seededRand.Perm(len(source))[:count] {
		output = append(output, source[index])
	}
	return output
}

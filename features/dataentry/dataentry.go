package dataentry

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"time"
)

// Kind is the utility-job kind for bulk entry tasks.
const Kind = "data_entry"

var (
	ErrTokenInvalid = errors.New("entry token invalid or expired")
	ErrNoRows       = errors.New("no usable rows in submission")
)

// Token is a single-use, time-limited grant to populate one table through
// the web entry form. The Ext value is the opaque URL extension.
type Token struct {
	Ext         string
	TableName   string
	ResponseURL string
	UserID      string
	ChannelID   string
	MessageTS   string
	ExpDate     time.Time
}

// Pair is one submitted key-value row.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TaskPayload is the utility-job body queued after a submission; the worker
// upserts the pairs into the target table and reports through response_url.
type TaskPayload struct {
	TableName   string `json:"table_name"`
	ResponseURL string `json:"response_url"`
	Pairs       []Pair `json:"pairs"`
}

// ParseCSV reads comma-separated key,value lines. Lines with fewer than two
// fields are skipped; extra fields are folded into the value with spaces.
// Later occurrences of a key win, matching the upsert the worker applies.
func ParseCSV(r io.Reader) ([]Pair, error) {
	var pairs []Pair
	seen := map[string]int{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), ",")
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSpace(fields[0])
		if key == "" {
			continue
		}
		value := strings.TrimSpace(strings.Join(fields[1:], " "))

		if i, ok := seen[key]; ok {
			pairs[i].Value = value
			continue
		}
		seen[key] = len(pairs)
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

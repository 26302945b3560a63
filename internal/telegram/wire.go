package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Update is the subset of a Telegram webhook update the backend consumes.
// The scoring bot reports results as plain message text.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message carries the pipe-delimited result text.
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

// Result is a parsed bot result: the request it belongs to, both scores, and
// the optional report URLs.
type Result struct {
	RequestID           string
	AIScore             float64
	PlagiarismScore     float64
	AIReportURL         string
	PlagiarismReportURL string
}

// ParseError describes why a result text was rejected. The webhook handler
// decides what to do with a malformed payload (log and acknowledge); the
// parser only reports the reason instead of swallowing it.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "malformed result text: " + e.Reason }

// ParseResultText parses the bot's ad hoc wire format:
//
//	requestID|aiScore|plagiarismScore|aiReportURL|plagiarismReportURL
//
// The two trailing URLs are optional and may be empty or absent. There is no
// escaping or versioning in this format; it is validated strictly on token
// count and numeric fields so that unexpected third-party payloads never
// reach the database.
func ParseResultText(s string) (Result, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Result{}, &ParseError{Reason: "empty text"}
	}

	tokens := strings.Split(s, "|")
	if len(tokens) < 3 {
		return Result{}, &ParseError{Reason: fmt.Sprintf("expected at least 3 fields, got %d", len(tokens))}
	}
	if len(tokens) > 5 {
		return Result{}, &ParseError{Reason: fmt.Sprintf("expected at most 5 fields, got %d", len(tokens))}
	}

	id := strings.TrimSpace(tokens[0])
	if id == "" {
		return Result{}, &ParseError{Reason: "empty request id"}
	}

	aiScore, err := strconv.ParseFloat(strings.TrimSpace(tokens[1]), 64)
	if err != nil {
		return Result{}, &ParseError{Reason: "unparseable ai score " + strconv.Quote(tokens[1])}
	}
	plagScore, err := strconv.ParseFloat(strings.TrimSpace(tokens[2]), 64)
	if err != nil {
		return Result{}, &ParseError{Reason: "unparseable plagiarism score " + strconv.Quote(tokens[2])}
	}

	res := Result{
		RequestID:       id,
		AIScore:         aiScore,
		PlagiarismScore: plagScore,
	}
	if len(tokens) > 3 {
		res.AIReportURL = strings.TrimSpace(tokens[3])
	}
	if len(tokens) > 4 {
		res.PlagiarismReportURL = strings.TrimSpace(tokens[4])
	}
	return res, nil
}

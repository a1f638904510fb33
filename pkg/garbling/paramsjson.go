package garbling

import (
	"encoding/json"
	"fmt"
	"io"
)

type jsonRawParam struct {
	Question  string  `json:"question"`
	Answer    string  `json:"answer"`
	Rate      float64 `json:"rate"`
	Covariate string  `json:"covariate,omitempty"`
}

// LoadRawParams reads the demonstration JSON format this repo stores a
// form's garbling specification in: a JSON array of
// {question, answer, rate, covariate}. This plays the role of the
// dedicated garbling sheet/columns an XLSForm spreadsheet adapter would
// read (§4.5); the spreadsheet wire format itself is a Non-goal (§7).
func LoadRawParams(r io.Reader) ([]RawParam, error) {
	var raw []jsonRawParam
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("garbling: decode JSON params: %w", err)
	}
	out := make([]RawParam, 0, len(raw))
	for _, p := range raw {
		out = append(out, RawParam{
			Question:  p.Question,
			Answer:    p.Answer,
			Rate:      p.Rate,
			Covariate: p.Covariate,
		})
	}
	return out, nil
}

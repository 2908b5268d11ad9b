package enrich

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/firmographics-cli/internal/llmjson"
	"github.com/sells-group/firmographics-cli/internal/model"
)

func parseEmployees(content string) (int, error) {
	obj := llmjson.ExtractObject(content)
	if obj == "" {
		return 0, eris.New("enrich: no employee object in response")
	}
	var raw struct {
		Total any `json:"total"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return 0, eris.Wrap(err, "enrich: parse employee data")
	}
	total, err := llmjson.CoerceInt(raw.Total)
	if err != nil {
		return 0, eris.Wrap(err, "enrich: employee total")
	}
	return total, nil
}

func parseLocation(content string) (*model.Address, error) {
	obj := llmjson.ExtractObject(content)
	if obj == "" {
		return nil, eris.New("enrich: no location object in response")
	}
	var addr model.Address
	if err := json.Unmarshal([]byte(obj), &addr); err != nil {
		return nil, eris.Wrap(err, "enrich: parse location data")
	}
	return &addr, nil
}

func parseRevenue(content string) (*model.Revenue, error) {
	obj := llmjson.ExtractObject(content)
	if obj == "" {
		return nil, eris.New("enrich: no revenue object in response")
	}
	var raw struct {
		Amount   any    `json:"amount"`
		Currency string `json:"currency"`
		Range    string `json:"range"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, eris.Wrap(err, "enrich: parse revenue data")
	}
	amount, err := coerceFloat(raw.Amount)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: revenue amount")
	}
	return &model.Revenue{Amount: amount, Currency: raw.Currency, Range: raw.Range}, nil
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "enrich: coerce %q to float", n)
		}
		return f, nil
	default:
		return 0, eris.Errorf("enrich: cannot coerce %T to float", v)
	}
}

func parseNews(content string) ([]model.NewsUpdate, error) {
	arr := llmjson.ExtractArray(content)
	if arr == "" {
		return nil, eris.New("enrich: no news array in response")
	}
	var items []model.NewsUpdate
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, eris.Wrap(err, "enrich: parse news data")
	}
	return items, nil
}

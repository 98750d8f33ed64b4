package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	enLocales "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// Chart types.
const (
	ChartValue       = "Value"
	ChartObjective   = "Objective"
	ChartPie         = "Pie"
	ChartLine        = "Line"
	ChartLeaderboard = "Leaderboard"
)

// Aggregators.
const (
	AggregateCount = "Count"
	AggregateSum   = "Sum"
	AggregateAvg   = "Avg"
)

// ChartRequest is the body of POST /forest/stats/:collection and POST /forest/stats.
type ChartRequest struct {
	Type              string          `json:"type" validate:"oneof=Value Objective Pie Line Leaderboard"`
	Collection        string          `json:"collection"`
	Aggregate         string          `json:"aggregate" validate:"omitempty,oneof=Count Sum Avg"`
	AggregateField    string          `json:"aggregate_field"`
	GroupByField      string          `json:"group_by_field" validate:"required_if=Type Pie Query ''"`
	GroupByDateField  string          `json:"group_by_date_field" validate:"required_if=Type Line Query ''"`
	TimeRange         string          `json:"time_range" validate:"required_if=Type Line Query '',omitempty,oneof=Day Week Month Year"`
	LabelField        string          `json:"label_field" validate:"required_if=Type Leaderboard Query ''"`
	RelationshipField string          `json:"relationship_field" validate:"required_if=Type Leaderboard Query ''"`
	Limit             json.Number     `json:"limit" validate:"omitempty,number"`
	Filters           json.RawMessage `json:"filters"`
	Timezone          string          `json:"timezone" validate:"omitempty,timezone"`
	Query             string          `json:"query"`
}

var (
	validate   = validator.New()
	translator ut.Translator
)

func init() {
	en := enLocales.New()
	translator, _ = ut.New(en, en).GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
}

// Validate checks the request shape before permissions are consulted. An
// unknown chart type is a Forest error; other failures are a 400 listing
// every invalid field.
func (r *ChartRequest) Validate() error {
	err := validate.Struct(r)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	details := make([]ErrorDetail, 0, len(ve))
	for _, fe := range ve {
		if fe.StructField() == "Type" {
			return ForestError("The chart's type is not recognized.")
		}
		details = append(details, ErrorDetail{Field: fe.Field(), Message: fe.Translate(translator)})
	}
	return BadRequestError("Invalid chart request", details...)
}

// ParseChartRequest decodes a request body.
func ParseChartRequest(body []byte) (*ChartRequest, error) {
	var req ChartRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return nil, BadRequestError("Invalid chart request: " + err.Error())
	}
	return &req, nil
}

// IsLiveQuery reports whether the request carries a raw SQL query.
func (r *ChartRequest) IsLiveQuery() bool {
	return strings.TrimSpace(r.Query) != ""
}

// FilterString returns the filters as a JSON string; the frontend sends
// them either as an encoded string or as an object.
func (r *ChartRequest) FilterString() string {
	raw := bytes.TrimSpace(r.Filters)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// LimitValue returns the leaderboard limit, 0 when absent.
func (r *ChartRequest) LimitValue() (int, error) {
	if r.Limit == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(r.Limit.String())
	if err != nil || n < 0 {
		return 0, BadRequestError("Invalid limit: " + r.Limit.String())
	}
	return n, nil
}

// AggregateName defaults to Count.
func (r *ChartRequest) AggregateName() string {
	if r.Aggregate == "" {
		return AggregateCount
	}
	return r.Aggregate
}

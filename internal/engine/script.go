package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

// Scenario is a canned crawl: per-keyword notices replayed with optional
// delays and failures. Used for demos and for exercising the full push
// pipeline without touching the live site.
type Scenario struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   ScenarioMeta `yaml:"metadata"`
	Spec       ScenarioSpec `yaml:"spec"`
}

type ScenarioMeta struct {
	Name string `yaml:"name"`
}

type ScenarioSpec struct {
	Keywords []KeywordScript `yaml:"keywords"`
}

type KeywordScript struct {
	Keyword string         `yaml:"keyword"`
	Delay   string         `yaml:"delay,omitempty"` // Go duration string, e.g. "300ms"
	Fail    string         `yaml:"fail,omitempty"`  // non-empty makes the search fail with this message
	Notices []ScriptNotice `yaml:"notices,omitempty"`
}

type ScriptNotice struct {
	Title       string        `yaml:"title"`
	Number      string        `yaml:"number,omitempty"`
	Agency      string        `yaml:"agency,omitempty"`
	Date        string        `yaml:"date,omitempty"`
	EndDate     string        `yaml:"endDate,omitempty"`
	Status      string        `yaml:"status,omitempty"`
	Attachments []string      `yaml:"attachments,omitempty"`
	Details     *ScriptDetail `yaml:"details,omitempty"`
}

type ScriptDetail struct {
	ContractMethod   string `yaml:"contractMethod,omitempty"`
	EstimatedPrice   string `yaml:"estimatedPrice,omitempty"`
	Qualification    string `yaml:"qualification,omitempty"`
	BidType          string `yaml:"bidType,omitempty"`
	ContractPeriod   string `yaml:"contractPeriod,omitempty"`
	DeliveryLocation string `yaml:"deliveryLocation,omitempty"`
	Notice           string `yaml:"notice,omitempty"`
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("yaml parse: %w", err)
	}

	if sc.APIVersion != "cradcrawl/v1" {
		return nil, fmt.Errorf("invalid apiVersion: %s", sc.APIVersion)
	}

	if sc.Kind != "Scenario" {
		return nil, fmt.Errorf("invalid kind: %s", sc.Kind)
	}

	return &sc, nil
}

// Script replays a Scenario through the Engine interface.
type Script struct {
	scenario *Scenario
	keywords map[string]*KeywordScript
	details  map[string]*ScriptDetail
}

func NewScript(sc *Scenario) *Script {
	s := &Script{
		scenario: sc,
		keywords: make(map[string]*KeywordScript),
		details:  make(map[string]*ScriptDetail),
	}
	for i := range sc.Spec.Keywords {
		ks := &sc.Spec.Keywords[i]
		s.keywords[ks.Keyword] = ks
		for j := range ks.Notices {
			sn := &ks.Notices[j]
			if sn.Details != nil {
				n := sn.notice()
				s.details[n.Key()] = sn.Details
			}
		}
	}
	return s
}

// LoadScript reads and parses a scenario file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return NewScript(sc), nil
}

func (s *Script) Init(ctx context.Context) error {
	return ctx.Err()
}

// Search replays the scripted notices for a keyword. Unknown keywords
// return no matches, like an empty list page would.
func (s *Script) Search(ctx context.Context, keyword string, opts SearchOptions) ([]bid.Notice, error) {
	ks, ok := s.keywords[keyword]
	if !ok {
		return nil, nil
	}

	if ks.Delay != "" {
		d, err := time.ParseDuration(ks.Delay)
		if err != nil {
			return nil, fmt.Errorf("scenario delay %q: %w", ks.Delay, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}

	if ks.Fail != "" {
		return nil, fmt.Errorf("%s", ks.Fail)
	}

	var notices []bid.Notice
	for i := range ks.Notices {
		if opts.MaxItems > 0 && len(notices) >= opts.MaxItems {
			break
		}
		notices = append(notices, ks.Notices[i].notice())
	}
	return notices, nil
}

// Details fills the detail block scripted for the notice, when one exists.
func (s *Script) Details(ctx context.Context, n *bid.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sd, ok := s.details[n.Key()]
	if !ok {
		return nil
	}
	n.Details = &bid.Details{
		ContractMethod:   sd.ContractMethod,
		EstimatedPrice:   sd.EstimatedPrice,
		Qualification:    sd.Qualification,
		BidType:          sd.BidType,
		ContractPeriod:   sd.ContractPeriod,
		DeliveryLocation: sd.DeliveryLocation,
		Notice:           sd.Notice,
	}
	return nil
}

func (s *Script) Close() error {
	return nil
}

// notice converts the YAML shape to the wire shape, without details; those
// arrive through the Details call like a real detail-page visit.
func (sn *ScriptNotice) notice() bid.Notice {
	return bid.Notice{
		Title:       sn.Title,
		Number:      sn.Number,
		Agency:      sn.Agency,
		Date:        sn.Date,
		EndDate:     sn.EndDate,
		Status:      bid.ParseStatus(sn.Status),
		Attachments: append([]string(nil), sn.Attachments...),
	}
}

package crm

import "fmt"

// Deal is the parsed form of a CRM deal object. Properties holds the raw
// property map; the named fields are extracted from well-known property keys
// during parsing.
type Deal struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	StageID       string            `json:"stage_id,omitempty"`
	StageLabel    string            `json:"stage_label,omitempty"`
	PipelineID    string            `json:"pipeline_id,omitempty"`
	PipelineLabel string            `json:"pipeline_label,omitempty"`
	Amount        string            `json:"amount,omitempty"`
	Priority      string            `json:"priority,omitempty"`
	CompanyID     string            `json:"company_id,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// Company is the parsed form of a CRM company object.
type Company struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Pipeline is one deal pipeline with its ordered stages.
type Pipeline struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Stages []Stage `json:"stages"`
}

// Stage is one stage within a pipeline.
type Stage struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Well-known deal property keys. The CRM stores everything as string
// properties; these are the slots this system reads and writes.
const (
	PropDealName     = "dealname"
	PropDealStage    = "dealstage"
	PropDealPipeline = "pipeline"
	PropDealAmount   = "amount"
	PropDealPriority = "priority"
)

// objectEnvelope is the raw wire shape shared by deal and company payloads.
// All fields are validated before conversion; the CRM is not trusted to
// honor its own schema.
type objectEnvelope struct {
	ID           string             `json:"id"`
	Properties   map[string]*string `json:"properties"`
	Associations map[string][]assoc `json:"associations,omitempty"`
}

type assoc struct {
	ID string `json:"id"`
}

func (e *objectEnvelope) validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: object id missing", ErrMalformedResponse)
	}
	return nil
}

// properties flattens the nullable wire property map, dropping nulls.
func (e *objectEnvelope) properties() map[string]string {
	props := make(map[string]string, len(e.Properties))
	for key, value := range e.Properties {
		if value != nil {
			props[key] = *value
		}
	}
	return props
}

func (e *objectEnvelope) firstAssociation(kind string) string {
	list := e.Associations[kind]
	if len(list) == 0 {
		return ""
	}
	return list[0].ID
}

func (e *objectEnvelope) toDeal() (*Deal, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	props := e.properties()
	return &Deal{
		ID:         e.ID,
		Name:       props[PropDealName],
		StageID:    props[PropDealStage],
		PipelineID: props[PropDealPipeline],
		Amount:     props[PropDealAmount],
		Priority:   props[PropDealPriority],
		CompanyID:  e.firstAssociation("companies"),
		Properties: props,
	}, nil
}

func (e *objectEnvelope) toCompany() (*Company, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	props := e.properties()
	return &Company{
		ID:         e.ID,
		Name:       props["name"],
		Properties: props,
	}, nil
}

type searchEnvelope struct {
	Results []objectEnvelope `json:"results"`
	Total   int              `json:"total"`
}

type pipelineEnvelope struct {
	Results []struct {
		ID     string `json:"id"`
		Label  string `json:"label"`
		Stages []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"stages"`
	} `json:"results"`
}

func (e *pipelineEnvelope) toPipelines() ([]Pipeline, error) {
	pipelines := make([]Pipeline, 0, len(e.Results))
	for _, raw := range e.Results {
		if raw.ID == "" {
			return nil, fmt.Errorf("%w: pipeline id missing", ErrMalformedResponse)
		}

		p := Pipeline{ID: raw.ID, Label: raw.Label, Stages: make([]Stage, 0, len(raw.Stages))}
		for _, s := range raw.Stages {
			if s.ID == "" {
				return nil, fmt.Errorf("%w: stage id missing in pipeline %s", ErrMalformedResponse, raw.ID)
			}
			p.Stages = append(p.Stages, Stage(s))
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

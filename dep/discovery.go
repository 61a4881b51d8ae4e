package dep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"

	"outreach/config"
	"outreach/entity"
)

// DiscoveryService locates prospective contacts matching a campaign's targeting
// criteria. The sequence is lazy and finite: each call returns one page and a cursor
// for the next, with an empty cursor at the end.
type DiscoveryService interface {
	Discover(ctx context.Context, criteria *entity.TargetingCriteria, cursor string, limit uint32) ([]*entity.Contact, string, error)
	Close(ctx context.Context) error
}

type discoveryService struct {
	index  string
	client *elasticsearch.Client
}

func NewDiscoveryService(_ context.Context, cfg config.Elasticsearch) (DiscoveryService, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addr,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	return &discoveryService{
		index:  cfg.Index,
		client: client,
	}, nil
}

type contactSource struct {
	Email      *string  `json:"email,omitempty"`
	Industry   *string  `json:"industry,omitempty"`
	Size       *string  `json:"size,omitempty"`
	Role       *string  `json:"role,omitempty"`
	Source     *string  `json:"source,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string        `json:"_id"`
			Source contactSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *discoveryService) Discover(ctx context.Context, criteria *entity.TargetingCriteria, cursor string, limit uint32) ([]*entity.Contact, string, error) {
	var from int
	if cursor != "" {
		var err error
		from, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid discovery cursor: %v", err)
		}
	}

	body, err := json.Marshal(buildQuery(criteria))
	if err != nil {
		return nil, "", err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithFrom(from),
		s.client.Search.WithSize(int(limit)),
	)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		return nil, "", fmt.Errorf("discovery search failed: %s", res.Status())
	}

	searchRes := new(searchResponse)
	if err := json.NewDecoder(res.Body).Decode(searchRes); err != nil {
		return nil, "", err
	}

	contacts := make([]*entity.Contact, 0, len(searchRes.Hits.Hits))
	for _, hit := range searchRes.Hits.Hits {
		id := hit.ID
		contacts = append(contacts, &entity.Contact{
			ID:         &id,
			Email:      hit.Source.Email,
			Industry:   hit.Source.Industry,
			Size:       hit.Source.Size,
			Role:       hit.Source.Role,
			Source:     hit.Source.Source,
			Confidence: hit.Source.Confidence,
		})
	}

	// empty cursor marks the end of the sequence
	nextCursor := ""
	if uint32(len(contacts)) == limit {
		nextCursor = strconv.Itoa(from + len(contacts))
	}

	return contacts, nextCursor, nil
}

func buildQuery(criteria *entity.TargetingCriteria) map[string]interface{} {
	must := make([]map[string]interface{}, 0)

	if criteria != nil {
		if len(criteria.Industries) > 0 {
			must = append(must, map[string]interface{}{
				"terms": map[string]interface{}{"industry": criteria.Industries},
			})
		}
		if len(criteria.Sizes) > 0 {
			must = append(must, map[string]interface{}{
				"terms": map[string]interface{}{"size": criteria.Sizes},
			})
		}
		if len(criteria.Roles) > 0 {
			must = append(must, map[string]interface{}{
				"terms": map[string]interface{}{"role": criteria.Roles},
			})
		}
	}

	if len(must) == 0 {
		return map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}
}

func (s *discoveryService) Close(_ context.Context) error {
	return nil
}

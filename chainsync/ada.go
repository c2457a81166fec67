package chainsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AdaTipOracle asks a blockfrost compatible HTTP API for the latest block.
type AdaTipOracle struct {
	url       string
	projectId string
	client    *http.Client
}

func NewAdaTipOracle(url, projectId string) *AdaTipOracle {
	return &AdaTipOracle{
		url:       strings.TrimSuffix(url, "/"),
		projectId: projectId,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type adaBlock struct {
	Height *uint64 `json:"height"`
	Slot   uint64  `json:"slot"`
}

func (o *AdaTipOracle) TipHeight(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url+"/blocks/latest", nil)
	if err != nil {
		return 0, err
	}
	if o.projectId != "" {
		req.Header.Set("project_id", o.projectId)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("latest block: status %d", resp.StatusCode)
	}

	var block adaBlock
	if err := json.NewDecoder(resp.Body).Decode(&block); err != nil {
		return 0, fmt.Errorf("decode latest block: %w", err)
	}
	if block.Height == nil {
		return 0, fmt.Errorf("latest block without height")
	}
	return *block.Height, nil
}

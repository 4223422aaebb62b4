// Package metrics derives the resource badges: it decodes probe snapshots
// from the stream or from the one-shot fetch and reduces them to a typed
// ResourceSnapshot, defaulting every missing or malformed field to zero.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/eventdeck/eventdeck/internal/model"
)

// Projector turns probe payloads into snapshots for an observer. It is fed
// from two sources carrying the same shape: the periodic probe envelope and
// the initial synchronous fetch.
type Projector struct {
	OnSnapshot func(model.ResourceSnapshot)

	httpc *http.Client
}

// NewProjector returns a projector fetching over httpc (defaulting to
// http.DefaultClient).
func NewProjector(httpc *http.Client) *Projector {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Projector{httpc: httpc}
}

// HandleEnvelope consumes one probe envelope. It never fails: malformed
// payloads degrade to zero values.
func (p *Projector) HandleEnvelope(env model.Envelope) {
	p.emit(Decode(env.Payload))
}

// FetchOnce performs the one-shot metrics fetch against base and returns
// the decoded snapshot. It does not notify the observer; the caller applies
// the result on its own scheduling thread.
func (p *Projector) FetchOnce(ctx context.Context, base string) (model.ResourceSnapshot, error) {
	url := strings.TrimRight(base, "/") + model.ProbeMetricsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.ResourceSnapshot{}, fmt.Errorf("metrics: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return model.ResourceSnapshot{}, fmt.Errorf("metrics: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.ResourceSnapshot{}, fmt.Errorf("metrics: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ResourceSnapshot{}, fmt.Errorf("metrics: read body: %w", err)
	}

	return Decode(body), nil
}

func (p *Projector) emit(snap model.ResourceSnapshot) {
	if p.OnSnapshot != nil {
		p.OnSnapshot(snap)
	}
}

// Decode extracts CPU, memory, and GPU aggregates from a probe payload of
// shape {cpu:{avg}, memory:{used,total}, gpus:[{mem_used,mem_total},...]},
// optionally wrapped in a data object. Missing or wrong-typed fields at any
// level default to zero; Decode never fails.
func Decode(payload []byte) model.ResourceSnapshot {
	var root map[string]any
	if err := json.Unmarshal(payload, &root); err != nil {
		return model.ResourceSnapshot{}
	}
	if inner, ok := root["data"].(map[string]any); ok {
		root = inner
	}

	var snap model.ResourceSnapshot
	snap.CPUAvg = toFloat(field(root, "cpu")["avg"])
	mem := field(root, "memory")
	snap.MemUsed = int64(toFloat(mem["used"]))
	snap.MemTotal = int64(toFloat(mem["total"]))

	gpus, _ := root["gpus"].([]any)
	for _, g := range gpus {
		gm, ok := g.(map[string]any)
		if !ok {
			continue
		}
		snap.GPUUsed += int64(toFloat(gm["mem_used"]))
		snap.GPUTotal += int64(toFloat(gm["mem_total"]))
	}
	return snap
}

func field(m map[string]any, key string) map[string]any {
	child, _ := m[key].(map[string]any)
	return child
}

// toFloat coerces a decoded JSON value to a number, defaulting to 0.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

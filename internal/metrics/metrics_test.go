// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.PacketsProcessed.Add(3)
	m.AttacksDetected.WithLabelValues("SYN Flood").Inc()

	var out dto.Metric
	require.NoError(t, m.PacketsProcessed.Write(&out))
	assert.Equal(t, 3.0, out.GetCounter().GetValue())

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

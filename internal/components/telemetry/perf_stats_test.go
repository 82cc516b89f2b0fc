package telemetry

import (
	"context"
	"os"
	"testing"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/require"
)

func TestSamplePerfStats(t *testing.T) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(t, err)

	rec := &recordingAPI{}
	samplePerfStats(context.Background(), proc, rec)

	require.NotEmpty(t, rec.reports)
	last := rec.reports[len(rec.reports)-1]
	require.Equal(t, "debug", last.kind)
	require.Equal(t, "perf stats", last.id)
	require.Len(t, last.params, 3)
}

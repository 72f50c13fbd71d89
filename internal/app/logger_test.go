package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/workpass/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() { logger.Set(nil) })

	require.NoError(t, ConfigureLogging("debug", "console"))
	require.NoError(t, ConfigureLogging("", ""))
	require.NoError(t, ConfigureLogging("verbose", "json"))
}

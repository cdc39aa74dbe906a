package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOp_ApplyOpts(t *testing.T) {
	t.Run("empty options", func(t *testing.T) {
		op := &Op{}
		err := op.applyOpts(nil)
		assert.NoError(t, err)
	})

	t.Run("multiple options", func(t *testing.T) {
		op := &Op{}
		err := op.applyOpts([]OpOption{
			WithRoutingEngine(EngineTorus),
			WithLMC(3),
			WithNueMaxNumVLs(5),
			WithNueIncludeSwitches(true),
			WithForceHeavySweep(true),
			WithIgnoreExistingLFTs(true),
			WithPortProfileSwitchNodes(true),
			WithTorusDatelineOffsets(1, -1, 0),
			WithDumpFilesDir("/tmp/dump"),
			WithListenAddress(":9999"),
			WithLogLevel("warn"),
			WithLogFile("/tmp/osmcore.log"),
		})
		require.NoError(t, err)

		assert.Equal(t, EngineTorus, op.routingEngine)
		assert.Equal(t, uint8(3), op.lmc)
		assert.Equal(t, 5, op.nueMaxNumVLs)
		assert.True(t, op.nueIncludeSwitches)
		assert.True(t, op.forceHeavySweep)
		assert.True(t, op.ignoreExistingLFTs)
		assert.True(t, op.portProfileSwitchNodes)
		assert.Equal(t, []int{1, -1, 0}, op.torusDatelineOffsets)
		assert.Equal(t, "/tmp/dump", op.dumpFilesDir)
		assert.Equal(t, ":9999", op.listenAddress)
		assert.Equal(t, "warn", op.logLevel)
		assert.Equal(t, "/tmp/osmcore.log", op.logFile)
	})
}

func TestOp_ApplyToConfig(t *testing.T) {
	t.Run("unset options leave defaults untouched", func(t *testing.T) {
		op := &Op{}
		cfg := &Config{RoutingEngine: EngineMinHop, LogLevel: "info"}
		op.applyToConfig(cfg)
		assert.Equal(t, EngineMinHop, cfg.RoutingEngine)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("set options override defaults", func(t *testing.T) {
		op := &Op{}
		require.NoError(t, op.applyOpts([]OpOption{
			WithRoutingEngine(EngineFatTree),
			WithLogLevel("debug"),
		}))
		cfg := &Config{RoutingEngine: EngineMinHop, LogLevel: "info"}
		op.applyToConfig(cfg)
		assert.Equal(t, EngineFatTree, cfg.RoutingEngine)
		assert.Equal(t, "debug", cfg.LogLevel)
	})
}

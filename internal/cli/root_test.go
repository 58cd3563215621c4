package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "searchql", cmd.Use)
	assert.Contains(t, cmd.Long, "attribute catalog")
}

func TestRootCommandVersion(t *testing.T) {
	cmd := NewRootCommand()
	out, _, err := execute(t, cmd, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "searchql version dev")
	assert.Contains(t, out, "catalog schema v1")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"compile"},
		{"resolve"},
		{"catalog"},
		{"catalog", "check"},
		{"catalog", "import"},
		{"test"},
		{"watch"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"catalog", "source"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	for _, name := range []string{"sql", "search"} {
		flag := compileCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "false", flag.DefValue)
	}
}

func TestCatalogImportCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	importCmd, _, err := cmd.Find([]string{"catalog", "import"})
	require.NoError(t, err)

	dbFlag := importCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	// --db is required, so default is empty
	assert.Equal(t, "", dbFlag.DefValue)

	pruneFlag := importCmd.Flags().Lookup("prune")
	require.NotNil(t, pruneFlag)
	assert.Equal(t, "false", pruneFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	for _, name := range []string{"update", "filter", "golden"} {
		assert.NotNil(t, testCmd.Flags().Lookup(name), name)
	}
}

func TestWatchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	watchCmd, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)

	intervalFlag := watchCmd.Flags().Lookup("interval")
	require.NotNil(t, intervalFlag)
	assert.Equal(t, "2s", intervalFlag.DefValue)

	assert.NotNil(t, watchCmd.Flags().Lookup("subscribe"))
	assert.NotNil(t, watchCmd.Flags().Lookup("metrics-addr"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, _, err := execute(t, cmd, "--format", "xml", "catalog", "check", testCatalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommandEndToEnd(t *testing.T) {
	cmd := NewRootCommand()
	out, _, err := execute(t, cmd, "compile", "--catalog", testCatalog, "globex", "ticket.priority:3")
	require.NoError(t, err)
	assert.Equal(t, "NumberMatch{feature.properties.ticket.priority, INTEGER 3}\n", out)
}

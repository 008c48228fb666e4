package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validYaml = `
log_level: debug
networks:
  - name: mainnet
    chain_id: 1
    rpc_url: https://rpc.example.org
    backend_url: https://api.example.org
    wrapped_native: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    gas_reserve: "3000000000000000"
    vaults:
      - address: "0x0000000000000000000000000000000000001234"
        flash_loan_helper: "0x0000000000000000000000000000000000005678"
        debt_precision_correction: "10"
        borrow_symbol: WETH
signatures:
  - vault: "0x0000000000000000000000000000000000001234"
    user: "0x0000000000000000000000000000000000000abc"
    v: 27
    r: "0x1111111111111111111111111111111111111111111111111111111111111111"
    s: "0x2222222222222222222222222222222222222222222222222222222222222222"
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYaml))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, 12*time.Second, cfg.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.PollMaxInterval)

	require.Len(t, cfg.Networks, 1)
	n := cfg.Networks[0]
	assert.EqualValues(t, 1, n.ChainID.Int64())
	assert.Equal(t, "3000000000000000", n.GasReserve.String())

	require.Len(t, n.Vaults, 1)
	assert.Equal(t, "WETH", n.Vaults[0].BorrowSymbol)
	assert.EqualValues(t, 10, n.Vaults[0].DebtPrecisionCorrection.Int64())

	require.Len(t, cfg.Signatures, 1)
	sig, ok := cfg.SignatureFor(n.Vaults[0].Address, cfg.Signatures[0].User)
	require.True(t, ok)
	assert.EqualValues(t, 27, sig.V)
}

func TestGasReserveDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
networks:
  - name: mainnet
    chain_id: 1
    rpc_url: https://rpc.example.org
    backend_url: https://api.example.org
    wrapped_native: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    vaults:
      - address: "0x0000000000000000000000000000000000001234"
`))
	require.NoError(t, err)
	assert.Equal(t, defaultGasReserve, cfg.Networks[0].GasReserve.String())
}

func TestRejectsMissingNetworks(t *testing.T) {
	_, err := Load(writeConfig(t, `log_level: info`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network")
}

func TestRejectsBadAddress(t *testing.T) {
	_, err := Load(writeConfig(t, `
networks:
  - name: mainnet
    chain_id: 1
    rpc_url: https://rpc.example.org
    backend_url: https://api.example.org
    wrapped_native: "not-an-address"
    vaults:
      - address: "0x0000000000000000000000000000000000001234"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrapped_native")
}

func TestRejectsBadSignatureV(t *testing.T) {
	_, err := Load(writeConfig(t, `
networks:
  - name: mainnet
    chain_id: 1
    rpc_url: https://rpc.example.org
    backend_url: https://api.example.org
    wrapped_native: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    vaults:
      - address: "0x0000000000000000000000000000000000001234"
signatures:
  - vault: "0x0000000000000000000000000000000000001234"
    user: "0x0000000000000000000000000000000000000abc"
    v: 5
    r: "0x1111111111111111111111111111111111111111111111111111111111111111"
    s: "0x2222222222222222222222222222222222222222222222222222222222222222"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'v'")
}

func TestRejectsInvertedPollIntervals(t *testing.T) {
	_, err := Load(writeConfig(t, `
poll_interval: 30s
poll_max_interval: 10s
networks:
  - name: mainnet
    chain_id: 1
    rpc_url: https://rpc.example.org
    backend_url: https://api.example.org
    wrapped_native: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    vaults:
      - address: "0x0000000000000000000000000000000000001234"
`))
	require.Error(t, err)
}

// Package config loads and validates the YAML configuration: networks,
// vault deployments and stored whitelist signatures.
package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Config is the validated application configuration.
type Config struct {
	LogLevel   string
	ListenAddr string
	JournalDir string

	PollInterval    time.Duration
	PollMaxInterval time.Duration

	Networks   []Network
	Signatures []StoredSignature
}

// Network is one chain the dashboard can operate on.
type Network struct {
	Name       string
	ChainID    *big.Int
	RPCURL     string
	BackendURL string

	WrappedNative common.Address
	PriceFeed     common.Address

	// GasReserve is the native amount held back from "max" calculations
	// so the transaction itself stays payable.
	GasReserve *big.Int

	Vaults []Vault
}

// Vault is one deployment plus optional metadata overrides that skip the
// corresponding chain reads.
type Vault struct {
	Address         common.Address
	FlashLoanHelper common.Address

	DebtPrecisionCorrection *big.Int

	SharesDecimals     int
	BorrowDecimals     int
	CollateralDecimals int

	SharesSymbol     string
	BorrowSymbol     string
	CollateralSymbol string
}

// StoredSignature is a pre-issued whitelist activation signature.
type StoredSignature struct {
	Vault common.Address
	User  common.Address
	V     uint8
	R     [32]byte
	S     [32]byte
}

type configTmp struct {
	LogLevel   string `yaml:"log_level"`
	ListenAddr string `yaml:"listen_addr"`
	JournalDir string `yaml:"journal_dir"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxInterval time.Duration `yaml:"poll_max_interval"`

	Networks   []networkTmp   `yaml:"networks"`
	Signatures []signatureTmp `yaml:"signatures"`
}

type networkTmp struct {
	Name          string `yaml:"name"`
	ChainID       int64  `yaml:"chain_id"`
	RPCURL        string `yaml:"rpc_url"`
	BackendURL    string `yaml:"backend_url"`
	WrappedNative string `yaml:"wrapped_native"`
	PriceFeed     string `yaml:"price_feed,omitempty"`
	GasReserve    string `yaml:"gas_reserve,omitempty"`

	Vaults []vaultTmp `yaml:"vaults"`
}

type vaultTmp struct {
	Address         string `yaml:"address"`
	FlashLoanHelper string `yaml:"flash_loan_helper,omitempty"`

	DebtPrecisionCorrection string `yaml:"debt_precision_correction,omitempty"`

	SharesDecimals     int `yaml:"shares_decimals,omitempty"`
	BorrowDecimals     int `yaml:"borrow_decimals,omitempty"`
	CollateralDecimals int `yaml:"collateral_decimals,omitempty"`

	SharesSymbol     string `yaml:"shares_symbol,omitempty"`
	BorrowSymbol     string `yaml:"borrow_symbol,omitempty"`
	CollateralSymbol string `yaml:"collateral_symbol,omitempty"`
}

type signatureTmp struct {
	Vault string `yaml:"vault"`
	User  string `yaml:"user"`
	V     uint8  `yaml:"v"`
	R     string `yaml:"r"`
	S     string `yaml:"s"`
}

const (
	defaultListenAddr      = "127.0.0.1:8080"
	defaultJournalDir      = "./wal/tx"
	defaultPollInterval    = 12 * time.Second
	defaultPollMaxInterval = 60 * time.Second
	defaultGasReserve      = "2000000000000000" // 0.002 native
)

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return validate(tmp)
}

func validate(tmp configTmp) (*Config, error) {
	cfg := &Config{
		LogLevel:        tmp.LogLevel,
		ListenAddr:      tmp.ListenAddr,
		JournalDir:      tmp.JournalDir,
		PollInterval:    tmp.PollInterval,
		PollMaxInterval: tmp.PollMaxInterval,
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = defaultJournalDir
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollMaxInterval <= 0 {
		cfg.PollMaxInterval = defaultPollMaxInterval
	}
	if cfg.PollMaxInterval < cfg.PollInterval {
		return nil, fmt.Errorf("poll_max_interval %s is below poll_interval %s", cfg.PollMaxInterval, cfg.PollInterval)
	}

	if len(tmp.Networks) == 0 {
		return nil, fmt.Errorf("at least one network is required")
	}
	for i, n := range tmp.Networks {
		network, err := validateNetwork(n)
		if err != nil {
			return nil, fmt.Errorf("network %d (%s): %w", i, n.Name, err)
		}
		cfg.Networks = append(cfg.Networks, network)
	}

	for i, s := range tmp.Signatures {
		sig, err := validateSignature(s)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		cfg.Signatures = append(cfg.Signatures, sig)
	}
	return cfg, nil
}

func validateNetwork(tmp networkTmp) (Network, error) {
	if tmp.Name == "" {
		return Network{}, fmt.Errorf("'name' is required")
	}
	if tmp.ChainID <= 0 {
		return Network{}, fmt.Errorf("incorrect 'chain_id': %d", tmp.ChainID)
	}
	if tmp.RPCURL == "" {
		return Network{}, fmt.Errorf("'rpc_url' is required")
	}
	if tmp.BackendURL == "" {
		return Network{}, fmt.Errorf("'backend_url' is required")
	}

	wrapped, err := parseAddress(tmp.WrappedNative, "wrapped_native", true)
	if err != nil {
		return Network{}, err
	}
	feed, err := parseAddress(tmp.PriceFeed, "price_feed", false)
	if err != nil {
		return Network{}, err
	}

	reserveStr := tmp.GasReserve
	if reserveStr == "" {
		reserveStr = defaultGasReserve
	}
	reserve, ok := new(big.Int).SetString(reserveStr, 10)
	if !ok || reserve.Sign() < 0 {
		return Network{}, fmt.Errorf("incorrect 'gas_reserve': %s", tmp.GasReserve)
	}

	n := Network{
		Name:          tmp.Name,
		ChainID:       big.NewInt(tmp.ChainID),
		RPCURL:        tmp.RPCURL,
		BackendURL:    tmp.BackendURL,
		WrappedNative: wrapped,
		PriceFeed:     feed,
		GasReserve:    reserve,
	}

	if len(tmp.Vaults) == 0 {
		return Network{}, fmt.Errorf("at least one vault is required")
	}
	for i, v := range tmp.Vaults {
		vault, err := validateVault(v)
		if err != nil {
			return Network{}, fmt.Errorf("vault %d: %w", i, err)
		}
		n.Vaults = append(n.Vaults, vault)
	}
	return n, nil
}

func validateVault(tmp vaultTmp) (Vault, error) {
	addr, err := parseAddress(tmp.Address, "address", true)
	if err != nil {
		return Vault{}, err
	}
	helper, err := parseAddress(tmp.FlashLoanHelper, "flash_loan_helper", false)
	if err != nil {
		return Vault{}, err
	}

	correction := big.NewInt(0)
	if tmp.DebtPrecisionCorrection != "" {
		var ok bool
		correction, ok = new(big.Int).SetString(tmp.DebtPrecisionCorrection, 10)
		if !ok || correction.Sign() < 0 {
			return Vault{}, fmt.Errorf("incorrect 'debt_precision_correction': %s", tmp.DebtPrecisionCorrection)
		}
	}

	return Vault{
		Address:                 addr,
		FlashLoanHelper:         helper,
		DebtPrecisionCorrection: correction,
		SharesDecimals:          tmp.SharesDecimals,
		BorrowDecimals:          tmp.BorrowDecimals,
		CollateralDecimals:      tmp.CollateralDecimals,
		SharesSymbol:            tmp.SharesSymbol,
		BorrowSymbol:            tmp.BorrowSymbol,
		CollateralSymbol:        tmp.CollateralSymbol,
	}, nil
}

func validateSignature(tmp signatureTmp) (StoredSignature, error) {
	vault, err := parseAddress(tmp.Vault, "vault", true)
	if err != nil {
		return StoredSignature{}, err
	}
	user, err := parseAddress(tmp.User, "user", true)
	if err != nil {
		return StoredSignature{}, err
	}
	if tmp.V != 27 && tmp.V != 28 {
		return StoredSignature{}, fmt.Errorf("incorrect 'v': %d", tmp.V)
	}

	sig := StoredSignature{Vault: vault, User: user, V: tmp.V}
	if err := parseHash(tmp.R, "r", &sig.R); err != nil {
		return StoredSignature{}, err
	}
	if err := parseHash(tmp.S, "s", &sig.S); err != nil {
		return StoredSignature{}, err
	}
	return sig, nil
}

func parseAddress(s, field string, required bool) (common.Address, error) {
	if s == "" {
		if required {
			return common.Address{}, fmt.Errorf("'%s' is required", field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("incorrect '%s' address: %s", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s, field string, out *[32]byte) error {
	h := common.HexToHash(s)
	if s == "" || h == (common.Hash{}) {
		return fmt.Errorf("incorrect '%s' value: %s", field, s)
	}
	copy(out[:], h[:])
	return nil
}

// SignatureFor returns the stored activation signature for a vault+user
// pair, if any.
func (c *Config) SignatureFor(vault, user common.Address) (StoredSignature, bool) {
	for _, s := range c.Signatures {
		if s.Vault == vault && s.User == user {
			return s, true
		}
	}
	return StoredSignature{}, false
}

package setup

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

type generatedConfig struct {
	LogLevel   string             `yaml:"log_level"`
	ListenAddr string             `yaml:"listen_addr"`
	Networks   []generatedNetwork `yaml:"networks"`
}

type generatedNetwork struct {
	Name          string           `yaml:"name"`
	ChainID       int64            `yaml:"chain_id"`
	RPCURL        string           `yaml:"rpc_url"`
	BackendURL    string           `yaml:"backend_url"`
	WrappedNative string           `yaml:"wrapped_native"`
	GasReserve    string           `yaml:"gas_reserve,omitempty"`
	Vaults        []generatedVault `yaml:"vaults"`
}

type generatedVault struct {
	Address         string `yaml:"address"`
	FlashLoanHelper string `yaml:"flash_loan_helper,omitempty"`
}

// RunTUI launches the terminal configuration wizard and writes
// config.gen.yaml.
func RunTUI() error {
	var (
		networkName   string
		chainIDStr    string
		rpcURL        string
		backendURL    string
		wrappedNative string
		gasReserveStr string
		vaultAddr     string
		flashHelper   string
		listenAddr    string
		confirm       bool
	)

	// defaults
	networkName = "mainnet"
	chainIDStr = "1"
	gasReserveStr = "2000000000000000"
	listenAddr = "127.0.0.1:8080"

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("VAULTDESK CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the dashboard at your network and vault.\n"))

	fmt.Println(stepStyle.Render("STEP 1: NETWORK"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Network Name").
				Value(&networkName).
				Validate(notEmpty("network name")),
			huh.NewInput().
				Title("Chain ID").
				Value(&chainIDStr).
				Validate(validateChainID),
			huh.NewInput().
				Title("RPC URL").
				Description("e.g. https://eth.llamarpc.com").
				Value(&rpcURL).
				Validate(notEmpty("rpc url")),
			huh.NewInput().
				Title("Backend URL").
				Description("indexing service base URL").
				Value(&backendURL).
				Validate(notEmpty("backend url")),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("VAULTDESK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: TOKENS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Wrapped Native Token").
				Description("e.g. WETH address on this chain").
				Value(&wrappedNative).
				Validate(validateAddress),
			huh.NewInput().
				Title("Gas Reserve (wei)").
				Description("native amount held back for transaction fees").
				Value(&gasReserveStr).
				Validate(validateWei),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("VAULTDESK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: VAULT"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Vault Address").
				Value(&vaultAddr).
				Validate(validateAddress),
			huh.NewInput().
				Title("Flash Loan Helper").
				Description("optional, leave empty if the vault has none").
				Value(&flashHelper).
				Validate(validateOptionalAddress),
			huh.NewInput().
				Title("Dashboard Listen Address").
				Value(&listenAddr).
				Validate(notEmpty("listen address")),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("VAULTDESK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Network: %s (chain %s)\nRPC: %s\nBackend: %s\nVault: %s\nListen: %s\n",
		networkName, chainIDStr, rpcURL, backendURL, vaultAddr, listenAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	chainID, _ := strconv.ParseInt(chainIDStr, 10, 64)
	cfg := generatedConfig{
		LogLevel:   "info",
		ListenAddr: listenAddr,
		Networks: []generatedNetwork{{
			Name:          networkName,
			ChainID:       chainID,
			RPCURL:        rpcURL,
			BackendURL:    backendURL,
			WrappedNative: wrappedNative,
			GasReserve:    gasReserveStr,
			Vaults: []generatedVault{{
				Address:         vaultAddr,
				FlashLoanHelper: flashHelper,
			}},
		}},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting dashboard...", filename)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func validateChainID(s string) error {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateAddress(s string) error {
	if !common.IsHexAddress(s) {
		return fmt.Errorf("must be a 0x-prefixed hex address")
	}
	return nil
}

func validateOptionalAddress(s string) error {
	if s == "" {
		return nil
	}
	return validateAddress(s)
}

func validateWei(s string) error {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return fmt.Errorf("must be a non-negative integer wei amount")
	}
	return nil
}

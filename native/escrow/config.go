package escrow

// PlatformConfig is the process-wide fee configuration.
type PlatformConfig struct {
	Treasury [20]byte
	FeeBps   int64
}

// Initialize stores the treasury and fee rate. A nil feeBps selects
// DefaultFeeBps. Repeated calls overwrite the previous configuration; there is
// no already-initialized guard.
func (e *Engine) Initialize(treasury [20]byte, feeBps *int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireProof(treasury); err != nil {
		return err
	}
	fee := DefaultFeeBps
	if feeBps != nil {
		fee = *feeBps
	}
	if err := ValidateFeeBps(fee); err != nil {
		return err
	}
	if err := e.store.Set(configTreasuryKey, treasury); err != nil {
		return err
	}
	return e.store.Set(configFeeKey, uint64(fee))
}

// UpdateFee replaces the fee rate. Only the stored treasury may call it.
func (e *Engine) UpdateFee(newFeeBps int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	treasury, err := e.loadTreasury()
	if err != nil {
		return err
	}
	if err := e.requireProof(treasury); err != nil {
		return err
	}
	if err := ValidateFeeBps(newFeeBps); err != nil {
		return err
	}
	return e.store.Set(configFeeKey, uint64(newFeeBps))
}

// GetConfig returns the treasury and fee. The default fee is reported only
// when a treasury exists but no fee was ever written.
func (e *Engine) GetConfig() (*PlatformConfig, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	treasury, err := e.loadTreasury()
	if err != nil {
		return nil, err
	}
	cfg := &PlatformConfig{Treasury: treasury, FeeBps: DefaultFeeBps}
	var fee uint64
	ok, err := e.store.Get(configFeeKey, &fee)
	if err != nil {
		return nil, err
	}
	if ok {
		cfg.FeeBps = int64(fee)
	}
	return cfg, nil
}

func (e *Engine) loadTreasury() ([20]byte, error) {
	var treasury [20]byte
	ok, err := e.store.Get(configTreasuryKey, &treasury)
	if err != nil {
		return treasury, err
	}
	if !ok {
		return treasury, ErrTreasuryNotInitialized
	}
	return treasury, nil
}

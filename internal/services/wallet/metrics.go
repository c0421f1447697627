package wallet

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordWalletOperation(string, string)      {}
func (n *NoopMetricsCollector) RecordBalanceChange(string, float64, float64) {}

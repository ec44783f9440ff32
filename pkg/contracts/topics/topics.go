package topics

const (
	// Pools
	PoolInitialized = "wager_pool_initialized"

	// Bets
	BetPlaced  = "wager_bet_placed"
	BetSettled = "wager_bet_settled"

	// DLQ
	WagerDLQ = "wager_dlq"
)

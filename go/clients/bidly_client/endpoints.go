package bidly_client

const (
	// Base URL
	DefaultBaseURL = "http://localhost:8080"

	// API Endpoints
	UsersMeEndpoint       = "/api/users/me"
	AuctionItemsEndpoint  = "/api/auction-items"
	AuctionStatusEndpoint = "/api/auction-status"
	HighestBidEndpointFmt = "/api/bids/auction/%s/highest"
	PlaceBidEndpoint      = "/api/bids/add"
	BuyNowEndpoint        = "/api/bids/buy-now"
	WinnersEndpoint       = "/api/winners"
	DeclareWinnerEndpoint = "/api/winners/add"

	// Form fields
	FieldUserID        = "userId"
	FieldAuctionItemID = "auctionItemId"
	FieldBidAmount     = "bidAmount"
	FieldWinningPrice  = "winningPrice"

	// Headers
	IdempotencyKeyHeader = "Idempotency-Key"

	// Item cache
	DefaultItemCacheSize = 64
)

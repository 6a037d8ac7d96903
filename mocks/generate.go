package mocks

//go:generate mockgen -destination=./mock_datasource.go -package=mocks github.com/quantframe/papertrade/internal/datasource MarketDataSource,QuoteProvider,MetadataProvider
//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/quantframe/papertrade/internal/strategy Strategy
//go:generate mockgen -destination=./mock_notifier.go -package=mocks github.com/quantframe/papertrade/internal/notify Notifier

package auction

import "github.com/mcdev12/bidly/go/internal/models"

//go:generate mockgen -source=navigator.go -destination=mock_navigator.go -package=auction

// Navigator moves the user away from the room once bidding is over
type Navigator interface {
	ShowResults(results models.Results)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(results models.Results)

func (f NavigatorFunc) ShowResults(results models.Results) {
	f(results)
}

package middleware

import "github.com/aretw0/sessionlock/pkg/ports"

// Middleware allows wrapping a Collection to add behavior.
type Middleware func(ports.Collection) ports.Collection

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(coll ports.Collection, mws ...Middleware) ports.Collection {
	for i := len(mws) - 1; i >= 0; i-- {
		coll = mws[i](coll)
	}
	return coll
}

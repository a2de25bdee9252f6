package middleware

import "github.com/danielgtaylor/huma/v2"

// Container collects the middleware chain of one handler group.
type Container struct {
	mws huma.Middlewares
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Add(mw func(huma.Context, func(huma.Context))) {
	c.mws = append(c.mws, mw)
}

// GetAllAndClear returns the collected chain and starts a new one.
func (c *Container) GetAllAndClear() huma.Middlewares {
	mws := c.mws
	c.mws = nil
	return mws
}

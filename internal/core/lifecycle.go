package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Optional module hooks, in the order the App calls them:
// Configure, Provision, Validate, Start, Stop.

// Configurable modules decode their section of the modules map. A module
// listed without a body gets an empty mapping node.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules acquire resources and publish services that later
// modules look up on the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their provisioned state. No side effects.
type Validator interface {
	Validate() error
}

// Starter modules launch listeners and goroutines once every module has
// been provisioned.
type Starter interface {
	Start() error
}

// Stopper modules release what Provision and Start acquired. The context
// carries the shutdown deadline.
type Stopper interface {
	Stop(ctx context.Context) error
}

package provisioner

import (
	"context"

	"CSU/internal/logger"
	"CSU/internal/model"
)

// Reference points the application at an external XML document or web service.
// No schema work is done.
type Reference struct {
	kind   model.ConfigurationKind
	logger logger.Logger
}

// NewReference returns a Reference for the XML or web-service kind.
func NewReference(kind model.ConfigurationKind, log logger.Logger) *Reference {
	return &Reference{kind: kind, logger: log}
}

func (p *Reference) Name() string { return p.kind.String() }

func (p *Reference) Provision(ctx context.Context, req *model.Request, _ *model.State) (*Result, error) {
	location := req.XMLFilePath
	if p.kind == model.KindWebService {
		location = req.WebServiceURL
	}

	p.logger.DebugContext(ctx, "using external metadata source", logger.String("kind", p.kind.String()), logger.String("location", location))

	return &Result{
		ConnectionString: location,
		PrimaryOnly:      true,
	}, nil
}

var _ Provisioner = (*Reference)(nil)

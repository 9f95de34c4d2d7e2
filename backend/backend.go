// Package backend is the client of the resolver: it sends resolve requests
// through a Transport, validates the returned biographies and turns them into
// documents and credentials with their chain metadata. Publishing goes through
// a ChainAdapter.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"
	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-did-sdk/biography"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/document"
	"github.com/pilacorp/go-did-sdk/idchain"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/metadata"
)

var logger = log.New("did-backend")

// DefaultBatchLimit bounds the concurrent resolutions of ResolveCredentials.
const DefaultBatchLimit = 8

// Transport sends a serialized resolve request and returns the raw response.
type Transport interface {
	Resolve(ctx context.Context, request []byte) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, request []byte) ([]byte, error)

// Resolve implements Transport.
func (f TransportFunc) Resolve(ctx context.Context, request []byte) ([]byte, error) {
	return f(ctx, request)
}

// ChainAdapter publishes a serialized ID chain request.
type ChainAdapter interface {
	CreateIDTransaction(ctx context.Context, payload, memo string) error
}

// Publishable is an ID chain request ready to be published.
type Publishable interface {
	JSON() ([]byte, error)
}

// ParseOpt configures the parsing of resolve requests and responses.
type ParseOpt func(*parseOptions)

type parseOptions struct {
	parser    *did.Parser
	processor *schema.Processor
}

// WithParser sets the parser of the DIDs and DID URLs carried by requests
// and responses. Nil keeps the default.
func WithParser(p *did.Parser) ParseOpt {
	return func(o *parseOptions) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithProcessor enables JSON-LD context checks on the resolved documents and
// credentials.
func WithProcessor(p *schema.Processor) ParseOpt {
	return func(o *parseOptions) {
		o.processor = p
	}
}

func getParseOptions(opts []ParseOpt) *parseOptions {
	o := &parseOptions{parser: did.DefaultParser()}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *parseOptions) biographyOpts() []biography.Opt {
	return []biography.Opt{biography.WithParser(o.parser), biography.WithProcessor(o.processor)}
}

// Backend resolves DIDs and credentials and publishes ID chain requests.
type Backend struct {
	transport  Transport
	adapter    ChainAdapter
	metadata   *metadata.Table
	batchLimit int
	parseOpts  []ParseOpt
}

// Option configures a Backend.
type Option func(*Backend)

// WithChainAdapter sets the adapter used by CreateIDTransaction.
func WithChainAdapter(adapter ChainAdapter) Option {
	return func(b *Backend) {
		b.adapter = adapter
	}
}

// WithMetadataTable records the metadata of every resolved document and
// credential in t.
func WithMetadataTable(t *metadata.Table) Option {
	return func(b *Backend) {
		b.metadata = t
	}
}

// WithBatchLimit sets the number of concurrent resolutions of
// ResolveCredentials.
func WithBatchLimit(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.batchLimit = n
		}
	}
}

// WithParseOptions sets the options parsing the resolver responses.
func WithParseOptions(opts ...ParseOpt) Option {
	return func(b *Backend) {
		b.parseOpts = append(b.parseOpts, opts...)
	}
}

// New creates a backend resolving through transport.
func New(transport Transport, opts ...Option) *Backend {
	b := &Backend{
		transport:  transport,
		batchLimit: DefaultBatchLimit,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// VerifierResolver returns the resolver used to verify credentials and
// presentations against resolved documents.
func (b *Backend) VerifierResolver() vc.Resolver {
	return document.VerifierResolver(b)
}

// ResolveDIDBiography returns the full history of id, or nil if the DID
// does not exist.
func (b *Backend) ResolveDIDBiography(ctx context.Context, id did.DID) (*biography.DIDBiography, error) {
	bio, err := b.resolveDIDBiography(ctx, id, true)
	if err != nil {
		return nil, err
	}

	if bio.Status() == biography.DIDStatusNotFound {
		return nil, nil
	}

	return bio, nil
}

func (b *Backend) resolveDIDBiography(ctx context.Context, id did.DID, all bool) (*biography.DIDBiography, error) {
	logger.Debug("Resolving DID biography", logfields.WithDID(id))

	req := NewDIDResolveRequest(id, all)

	data, err := b.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := ParseDIDResolveResponse(data, b.parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrDIDResolve, err)
	}

	bio, err := result(req, resp)
	if err != nil {
		return nil, err
	}

	if bio.DID() != id {
		return nil, diderrors.Errorf(diderrors.ErrDIDResolve, "resolved biography of %s, expected %s", bio.DID(), id)
	}

	return bio, nil
}

// ResolveDID resolves the current document of id with its chain metadata. It
// returns nil if the DID does not exist. A deactivated DID resolves to its
// last document with the deactivated flag set.
func (b *Backend) ResolveDID(ctx context.Context, id did.DID) (*document.Document, error) {
	ctx, err := enterResolve(ctx, id.String())
	if err != nil {
		return nil, err
	}

	bio, err := b.resolveDIDBiography(ctx, id, false)
	if err != nil {
		return nil, err
	}

	txs := bio.Transactions()
	var current int

	switch bio.Status() {
	case biography.DIDStatusValid:
		current = 0

	case biography.DIDStatusDeactivated:
		if len(txs) != 2 {
			return nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid biography of %s: wrong transaction count", id)
		}

		deactivate := txs[0].Request()
		if deactivate.Operation() != idchain.Deactivate {
			return nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid biography of %s: wrong status", id)
		}

		doc := txs[1].Request().Document()
		if doc == nil {
			return nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid biography of %s: invalid transactions", id)
		}

		if err := resolveControllers(ctx, doc, b); err != nil {
			return nil, err
		}

		if !deactivate.IsValidWith(doc, nil) {
			return nil, diderrors.Errorf(diderrors.ErrDIDResolve,
				"invalid biography of %s: transaction signature mismatch", id)
		}

		current = 1

	default:
		logger.Debug("DID not resolved", logfields.WithDID(id), logfields.WithStatus(bio.Status()))

		return nil, nil
	}

	doc, err := b.checkDIDTransaction(ctx, id, bio, current)
	if err != nil {
		return nil, err
	}

	logger.Debug("Resolved DID", logfields.WithDID(id), logfields.WithStatus(bio.Status()),
		logfields.WithTxID(txs[current].TransactionID()))

	return doc, nil
}

func (b *Backend) checkDIDTransaction(ctx context.Context, id did.DID, bio *biography.DIDBiography,
	current int) (*document.Document, error) {
	tx := bio.Transaction(current)
	req := tx.Request()

	if !isDocumentOperation(req.Operation()) {
		return nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid transaction %s: unknown operation %s",
			tx.TransactionID(), req.Operation())
	}

	valid, err := req.IsValid(ctx, b, nil)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid transaction %s: signature mismatch",
			tx.TransactionID())
	}

	doc := req.Document()

	md, err := b.didMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	published := tx.Timestamp()
	md.TransactionID = tx.TransactionID()
	md.Published = &published
	md.Deactivated = bio.Status() == biography.DIDStatusDeactivated
	if proof, ok := doc.Proof(); ok {
		md.Signature = proof.Signature
	}
	if current+1 < bio.Count() {
		if prev := bio.Transaction(current + 1).Request().Document(); prev != nil {
			if proof, ok := prev.Proof(); ok {
				md.PreviousSignature = proof.Signature
			}
		}
	}

	doc.SetMetadata(md)

	if b.metadata != nil {
		if err := b.metadata.SetDID(ctx, id, md); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func (b *Backend) didMetadata(ctx context.Context, id did.DID) (*metadata.DIDMetadata, error) {
	if b.metadata == nil {
		return &metadata.DIDMetadata{}, nil
	}

	md, err := b.metadata.DID(ctx, id)
	if err != nil {
		return nil, err
	}
	if md == nil {
		md = &metadata.DIDMetadata{}
	}

	return md, nil
}

// ResolveDocument implements document.Resolver.
func (b *Backend) ResolveDocument(ctx context.Context, id did.DID) (*document.Document, error) {
	doc, err := b.ResolveDID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s: %w", id, diderrors.ErrDIDNotFound)
	}

	return doc, nil
}

// ResolveCredentialBiography returns the history of the credential id. A
// non-zero issuer makes the resolver report revocations by the issuer as
// well. It returns nil if the credential is unknown.
func (b *Backend) ResolveCredentialBiography(ctx context.Context, id did.DIDURL,
	issuer did.DID) (*biography.CredentialBiography, error) {
	bio, err := b.resolveCredentialBiography(ctx, id, issuer)
	if err != nil {
		return nil, err
	}

	if bio.Status() == biography.CredentialStatusNotFound {
		return nil, nil
	}

	return bio, nil
}

func (b *Backend) resolveCredentialBiography(ctx context.Context, id did.DIDURL,
	issuer did.DID) (*biography.CredentialBiography, error) {
	logger.Debug("Resolving credential biography", logfields.WithID(id))

	req := NewCredentialResolveRequest(id, issuer)

	data, err := b.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := ParseCredentialResolveResponse(data, b.parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrDIDResolve, err)
	}

	bio, err := result(req, resp)
	if err != nil {
		return nil, err
	}

	if !bio.ID().Equal(id) {
		return nil, diderrors.Errorf(diderrors.ErrDIDResolve, "resolved biography of %s, expected %s", bio.ID(), id)
	}

	return bio, nil
}

// ResolveCredential resolves the declared credential id with its chain
// metadata. It returns a nil credential if the credential was never
// declared; a credential revoked without being declared resolves to a nil
// credential and metadata with the revoked flag set.
func (b *Backend) ResolveCredential(ctx context.Context, id did.DIDURL,
	issuer did.DID) (*vc.Credential, *metadata.CredentialMetadata, error) {
	ctx, err := enterResolve(ctx, id.String())
	if err != nil {
		return nil, nil, err
	}

	bio, err := b.resolveCredentialBiography(ctx, id, issuer)
	if err != nil {
		return nil, nil, err
	}

	txs := bio.Transactions()
	revoked := bio.Status() == biography.CredentialStatusRevoked

	var declare int

	switch bio.Status() {
	case biography.CredentialStatusValid:
		declare = 0

	case biography.CredentialStatusRevoked:
		revoke := txs[0].Request()
		if revoke.Operation() != idchain.Revoke {
			return nil, nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid biography of %s: wrong status", id)
		}
		if len(txs) > 2 {
			return nil, nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid biography of %s: wrong transaction count", id)
		}

		if len(txs) == 2 {
			if err := revoke.AttachCredential(txs[1].Request().Credential()); err != nil {
				return nil, nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid biography of %s: %s", id, err)
			}
		}

		valid, err := revoke.IsValid(ctx, b, nil)
		if err != nil {
			return nil, nil, err
		}
		if !valid {
			return nil, nil, diderrors.Errorf(diderrors.ErrDIDResolve,
				"invalid biography of %s: transaction signature mismatch", id)
		}

		if len(txs) == 1 {
			md, err := b.setCredentialMetadata(ctx, id, txs[0].TransactionID(), txs[0].Timestamp(), true)
			if err != nil {
				return nil, nil, err
			}

			logger.Debug("Credential revoked before declaration", logfields.WithID(id))

			return nil, md, nil
		}

		declare = 1

	default:
		logger.Debug("Credential not resolved", logfields.WithID(id), logfields.WithStatus(bio.Status()))

		return nil, nil, nil
	}

	tx := txs[declare]
	req := tx.Request()
	if req.Operation() != idchain.Declare {
		return nil, nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid transaction %s: unknown operation %s",
			tx.TransactionID(), req.Operation())
	}

	valid, err := req.IsValid(ctx, b, nil)
	if err != nil {
		return nil, nil, err
	}
	if !valid {
		return nil, nil, diderrors.Errorf(diderrors.ErrDIDResolve, "invalid transaction %s: signature mismatch",
			tx.TransactionID())
	}

	md, err := b.setCredentialMetadata(ctx, id, tx.TransactionID(), tx.Timestamp(), revoked)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("Resolved credential", logfields.WithID(id), logfields.WithStatus(bio.Status()),
		logfields.WithTxID(tx.TransactionID()))

	return req.Credential(), md, nil
}

func (b *Backend) setCredentialMetadata(ctx context.Context, id did.DIDURL, txID string,
	published time.Time, revoked bool) (*metadata.CredentialMetadata, error) {
	md := &metadata.CredentialMetadata{}

	if b.metadata != nil {
		stored, err := b.metadata.Credential(ctx, id)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			md = stored
		}
	}

	md.TransactionID = txID
	md.Published = &published
	md.Revoked = revoked

	if b.metadata != nil {
		if err := b.metadata.SetCredential(ctx, id, md); err != nil {
			return nil, err
		}
	}

	return md, nil
}

// IsCredentialRevoked implements vc.RevocationResolver.
func (b *Backend) IsCredentialRevoked(ctx context.Context, id did.DIDURL, issuer did.DID) (bool, error) {
	_, md, err := b.ResolveCredential(ctx, id, issuer)
	if err != nil {
		return false, err
	}

	return md != nil && md.Revoked, nil
}

// ResolveCredentials resolves ids concurrently. The result is aligned with
// ids; unknown credentials are nil. The first failure cancels the batch.
func (b *Backend) ResolveCredentials(ctx context.Context, ids []did.DIDURL) ([]*vc.Credential, error) {
	creds := make([]*vc.Credential, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.batchLimit)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			cred, _, err := b.ResolveCredential(gctx, id, did.DID{})
			if err != nil {
				return fmt.Errorf("failed to resolve credential %s: %w", id, err)
			}
			creds[i] = cred

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("Resolved credentials", logfields.WithCount(len(ids)))

	return creds, nil
}

// ListCredentials returns a page of the ids of the credentials declared by
// id. See NewCredentialListRequest for the paging limits.
func (b *Backend) ListCredentials(ctx context.Context, id did.DID, skip, limit int) ([]did.DIDURL, error) {
	req, err := NewCredentialListRequest(id, skip, limit)
	if err != nil {
		return nil, err
	}

	logger.Debug("Listing credentials", logfields.WithDID(id), logfields.WithSize(req.Limit()))

	data, err := b.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := ParseCredentialListResponse(data, b.parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrDIDResolve, err)
	}

	list, err := result(req, resp)
	if err != nil {
		return nil, err
	}

	if !list.DID().Equal(id) {
		return nil, diderrors.Errorf(diderrors.ErrDIDResolve, "listed credentials of %s, expected %s", list.DID(), id)
	}

	return list.CredentialIDs(), nil
}

// CreateIDTransaction publishes a serialized ID chain request.
func (b *Backend) CreateIDTransaction(ctx context.Context, payload, memo string) error {
	if b.adapter == nil {
		return diderrors.Errorf(diderrors.ErrUnsupportedOperation, "no chain adapter")
	}

	logger.Debug("Creating ID transaction", logfields.WithSize(len(payload)))

	if err := b.adapter.CreateIDTransaction(ctx, payload, memo); err != nil {
		return fmt.Errorf("%w: failed to create ID transaction: %w", diderrors.ErrDIDBackend, err)
	}

	return nil
}

// Publish serializes r and publishes it.
func (b *Backend) Publish(ctx context.Context, r Publishable, memo string) error {
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	return b.CreateIDTransaction(ctx, string(data), memo)
}

func (b *Backend) roundTrip(ctx context.Context, req Request) ([]byte, error) {
	data, err := SerializeRequest(req)
	if err != nil {
		return nil, err
	}

	logger.Debug("Sending resolve request", logfields.WithMethod(string(req.Method())),
		logfields.WithRequestID(req.ID()))

	resp, err := b.transport.Resolve(ctx, data)
	if err != nil {
		logger.Debug("Resolve request failed", logfields.WithRequestID(req.ID()), log.WithError(err))

		return nil, fmt.Errorf("%w: %w", diderrors.ErrDIDResolve, err)
	}

	return resp, nil
}

// result returns the result of resp, or its error as a server error.
func result[T Result](req Request, resp *Response[T]) (T, error) {
	var zero T

	if resp.ID() != "" && resp.ID() != req.ID() {
		return zero, diderrors.Errorf(diderrors.ErrDIDResolve, "response %s does not answer request %s",
			resp.ID(), req.ID())
	}

	if e := resp.Error(); e != nil {
		return zero, fmt.Errorf("%w: %w", diderrors.ErrDIDResolve, e.Err())
	}

	res, _ := resp.Result()

	return res, nil
}

func resolveControllers(ctx context.Context, doc *document.Document, resolver document.Resolver) error {
	if err := doc.ResolveControllers(ctx, resolver); err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
		return err
	}

	return nil
}

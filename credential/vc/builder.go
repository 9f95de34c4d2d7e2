package vc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/keystore"
)

// Builder assembles and seals one credential. It is single use: after Seal
// every call fails with diderrors.ErrAlreadySealed.
type Builder struct {
	issuer     SignerDocument
	processor  *schema.Processor
	signKey    did.DIDURL
	credential *Credential
	sealed     bool
}

// NewBuilder starts a credential about subject issued by the owner of issuer.
func NewBuilder(issuer SignerDocument, subject did.DID, opts ...CredentialOpt) *Builder {
	options := getOptions(opts...)

	return &Builder{
		issuer:    issuer,
		processor: options.processor,
		credential: &Credential{
			issuer:  issuer.Subject(),
			subject: Subject{ID: subject, Properties: make(map[string]interface{})},
		},
	}
}

func (b *Builder) checkNotSealed() error {
	if b.sealed {
		return fmt.Errorf("credential builder: %w", diderrors.ErrAlreadySealed)
	}

	return nil
}

// ID sets the credential id. Relative ids, such as "#profile", refer to
// the subject.
func (b *Builder) ID(id string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := did.ParserFor(b.credential.subject.ID).ParseURLWithContext(b.credential.subject.ID, id)
	if err != nil {
		return fmt.Errorf("%w: invalid credential id: %w", diderrors.ErrIllegalArgument, err)
	}
	if u.DID() != b.credential.subject.ID {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "credential id %s is not under %s", u, b.credential.subject.ID)
	}

	b.credential.id = u

	return nil
}

// Types adds credential types.
func (b *Builder) Types(types ...string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	for _, t := range types {
		if t == "" {
			return diderrors.Errorf(diderrors.ErrIllegalArgument, "empty credential type")
		}
		if !b.credential.HasType(t) {
			b.credential.types = append(b.credential.types, t)
		}
	}

	return nil
}

// Property sets one subject property.
func (b *Builder) Property(name string, value interface{}) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	if name == "" || name == jsonFldID {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid property name '%s'", name)
	}

	b.credential.subject.Properties[name] = value

	return nil
}

// Properties replaces the subject properties. An "id" entry is ignored.
func (b *Builder) Properties(props map[string]interface{}) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	b.credential.subject.Properties = make(map[string]interface{}, len(props))
	for k, v := range props {
		if k != jsonFldID {
			b.credential.subject.Properties[k] = v
		}
	}

	return nil
}

// ExpirationDate sets the expiration date. It may not be later than the
// expiration of the issuer document.
func (b *Builder) ExpirationDate(t time.Time) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	t = t.UTC().Truncate(time.Second)
	if !t.After(time.Now()) {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "expiration date %s is in the past", util.FormatTime(t))
	}
	if expires := b.issuer.Expires(); !expires.IsZero() && t.After(expires) {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "expiration date is after the issuer document expires")
	}

	b.credential.expirationDate = t

	return nil
}

// SignKey sets the issuer key used by Seal. It defaults to the default key
// of the issuer document.
func (b *Builder) SignKey(id did.DIDURL) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	b.signKey = id

	return nil
}

// Seal signs the credential and invalidates the builder.
func (b *Builder) Seal(ctx context.Context, ks keystore.KeyStore, password string) (*Credential, error) {
	if err := b.checkNotSealed(); err != nil {
		return nil, err
	}

	c := b.credential
	if c.id.IsZero() {
		return nil, diderrors.Errorf(diderrors.ErrIllegalState, "missing credential id")
	}
	if password == "" {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "password is empty")
	}

	signKey := b.signKey
	if signKey.IsZero() {
		var ok bool
		if signKey, ok = b.issuer.DefaultPublicKeyID(); !ok {
			return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "issuer %s has no default key", c.issuer)
		}
	}
	if !b.issuer.IsAuthenticationKey(signKey) {
		return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "%s is not an authentication key of %s", signKey, c.issuer)
	}
	if !ks.ContainsPrivateKey(signKey) {
		return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "no private key for %s", signKey)
	}

	if c.IsSelfProclaimed() && !c.HasType(SelfProclaimedCredential) {
		c.types = append(c.types, SelfProclaimedCredential)
	}
	if len(c.types) == 0 {
		return nil, diderrors.Errorf(diderrors.ErrIllegalState, "missing credential type")
	}
	sort.Strings(c.types)

	if b.processor.Enabled() {
		c.contexts = append([]string(nil), schema.CredentialContexts...)
	}

	now := util.Now()
	c.issuanceDate = now
	if c.expirationDate.IsZero() {
		c.expirationDate = b.issuer.Expires()
	}
	if c.expirationDate.IsZero() {
		c.expirationDate = now.AddDate(5, 0, 0)
	}

	data, err := c.SigningInput()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential: %w", err)
	}

	sig, err := ks.Sign(ctx, signKey, password, data)
	if err != nil {
		return nil, fmt.Errorf("failed to sign credential: %w", err)
	}

	c.proof = Proof{
		Type:               crypto.KeyTypeSecp256k1,
		Created:            now,
		VerificationMethod: signKey,
		Signature:          crypto.EncodeSignature(sig),
	}

	b.sealed = true
	b.credential = nil

	logger.Debug("Sealed credential", logfields.WithID(c.id), logfields.WithKeyID(signKey))

	return c, nil
}

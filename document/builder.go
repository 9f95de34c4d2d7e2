package document

import (
	"context"
	"fmt"
	"time"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/keystore"
)

// Builder creates or edits one document. Every mutation drops the proofs
// collected so far. After Seal every call fails with
// diderrors.ErrAlreadySealed.
type Builder struct {
	document   *Document
	controller *Document
	processor  *schema.Processor
	sealed     bool
}

// NewBuilder starts a document of a normal DID. The default key, whose
// address is the method specific id of subject, must be added before Seal.
func NewBuilder(subject did.DID, opts ...Opt) *Builder {
	o := getOptions(opts...)

	return &Builder{
		processor: o.processor,
		document: &Document{
			subject:        subject,
			authentication: make(map[string]bool),
			authorization:  make(map[string]bool),
			controllerDocs: make(map[did.DID]*Document),
		},
	}
}

// NewBuilderWithKey starts a document of the DID owned by keyBase58 and adds
// the key as the default key with the given fragment. The DID has the method
// of the parser option.
func NewBuilderWithKey(keyBase58, fragment string, opts ...Opt) (*Builder, error) {
	subject, err := SubjectFromKey(keyBase58)
	if err != nil {
		return nil, err
	}
	subject = did.New(getOptions(opts...).parser.Method(), subject.MethodSpecificID())

	b := NewBuilder(subject, opts...)
	if err := b.AddAuthenticationKey("#"+fragment, keyBase58); err != nil {
		return nil, err
	}

	return b, nil
}

// NewCustomizedBuilder starts a document of a customized DID. controller is
// the document of the controller that seals it.
func NewCustomizedBuilder(subject did.DID, controller *Document, opts ...Opt) (*Builder, error) {
	b := NewBuilder(subject, opts...)

	if err := b.AddController(controller); err != nil {
		return nil, err
	}
	b.controller = controller

	return b, nil
}

// Edit starts editing a copy of a normal document. The copy has no proofs.
func (d *Document) Edit(opts ...Opt) (*Builder, error) {
	if d.IsCustomized() {
		return nil, diderrors.Errorf(diderrors.ErrIllegalState, "customized DID %s needs a controller to edit", d.subject)
	}

	o := getOptions(opts...)

	doc := d.clone()
	doc.proofs = nil

	return &Builder{document: doc, processor: o.processor}, nil
}

// EditAs starts editing a copy of a customized document on behalf of one of
// its controllers.
func (d *Document) EditAs(controller *Document, opts ...Opt) (*Builder, error) {
	if !d.IsCustomized() {
		return nil, fmt.Errorf("%s: %w", d.subject, diderrors.ErrNotCustomizedDID)
	}
	if controller == nil || !d.HasController(controller.subject) {
		return nil, diderrors.Errorf(diderrors.ErrNotController, "not a controller of %s", d.subject)
	}

	o := getOptions(opts...)

	doc := d.clone()
	doc.proofs = nil
	doc.controllerDocs[controller.subject] = controller
	doc.effectiveController = controller.subject

	return &Builder{document: doc, controller: controller, processor: o.processor}, nil
}

func (b *Builder) checkNotSealed() error {
	if b.sealed {
		return fmt.Errorf("document builder: %w", diderrors.ErrAlreadySealed)
	}

	return nil
}

func (b *Builder) checkCustomized() error {
	if b.hasDefaultKey() {
		return fmt.Errorf("%s: %w", b.document.subject, diderrors.ErrNotCustomizedDID)
	}

	return nil
}

func (b *Builder) hasDefaultKey() bool {
	for _, pk := range b.document.publicKeys {
		if pk.Controller == b.document.subject && pk.Address() == b.document.subject.MethodSpecificID() {
			return true
		}
	}

	return false
}

func (b *Builder) invalidateProofs() {
	b.document.proofs = nil
}

// Subject returns the DID of the document under construction.
func (b *Builder) Subject() did.DID {
	return b.document.subject
}

func (b *Builder) keyID(id string) (did.DIDURL, error) {
	u, err := did.ParserFor(b.document.subject).ParseURLWithContext(b.document.subject, id)
	if err != nil {
		return did.DIDURL{}, fmt.Errorf("%w: invalid key id: %w", diderrors.ErrIllegalArgument, err)
	}
	if u.DID() != b.document.subject {
		return did.DIDURL{}, diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid key id %s, should under %s", u, b.document.subject)
	}

	return u, nil
}

// AddController adds a controller to a customized document. The controller
// document must be a genuine, valid normal document.
func (b *Builder) AddController(controller *Document) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}
	if err := b.checkCustomized(); err != nil {
		return err
	}

	if controller == nil {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "nil controller document")
	}
	c := controller.subject
	if c == b.document.subject || b.document.HasController(c) {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid controller %s", c)
	}
	if controller.IsCustomized() {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "controller %s is a customized DID", c)
	}
	if controller.IsDeactivated() {
		return fmt.Errorf("controller %s: %w", c, diderrors.ErrDIDDeactivated)
	}
	if controller.IsExpired() || !controller.IsGenuine(nil) {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "controller %s is invalid", c)
	}

	b.document.controllers = append(b.document.controllers, c)
	sortDIDs(b.document.controllers)
	b.document.controllerDocs[c] = controller
	b.document.multisig = nil
	b.invalidateProofs()

	return nil
}

// RemoveController removes a controller other than the one sealing.
func (b *Builder) RemoveController(c did.DID) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}
	if err := b.checkCustomized(); err != nil {
		return err
	}

	if b.controller != nil && b.controller.subject == c {
		return diderrors.Errorf(diderrors.ErrUnsupportedOperation, "can not remove the effective controller %s", c)
	}
	if !b.document.HasController(c) {
		return diderrors.Errorf(diderrors.ErrNotController, "%s is not a controller of %s", c, b.document.subject)
	}

	controllers := b.document.controllers[:0]
	for _, existing := range b.document.controllers {
		if existing != c {
			controllers = append(controllers, existing)
		}
	}
	b.document.controllers = controllers
	delete(b.document.controllerDocs, c)
	b.document.multisig = nil
	b.invalidateProofs()

	return nil
}

// SetMultiSignature sets the number of controllers that must sign. It is a
// no-op with a single controller.
func (b *Builder) SetMultiSignature(m int) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}
	if err := b.checkCustomized(); err != nil {
		return err
	}

	n := len(b.document.controllers)
	if m < 1 || m > n {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid signature count %d of %d controllers", m, n)
	}
	if n == 1 {
		return nil
	}

	ms, err := NewMultiSignature(m, n)
	if err != nil {
		return err
	}
	if ms.Equal(b.document.multisig) {
		return nil
	}

	b.document.multisig = ms
	b.invalidateProofs()

	return nil
}

// AddPublicKey adds a key. A zero controller means the subject.
func (b *Builder) AddPublicKey(id string, controller did.DID, keyBase58 string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}
	if _, exists := b.document.ownKey(u.String()); exists {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "public key already exists: %s", u)
	}
	if _, err := crypto.DecodePublicKeyBase58(keyBase58); err != nil {
		return fmt.Errorf("%w: invalid public key %s: %w", diderrors.ErrIllegalArgument, u, err)
	}
	if controller.IsZero() {
		controller = b.document.subject
	}

	b.document.publicKeys = append(b.document.publicKeys, PublicKey{
		ID:              u,
		Type:            crypto.KeyTypeSecp256k1,
		Controller:      controller,
		PublicKeyBase58: keyBase58,
	})
	sortPublicKeys(b.document.publicKeys)
	b.invalidateProofs()

	return nil
}

// RemovePublicKey removes a key. Keys in use for authentication or
// authorization are removed only with force. The default key can not be
// removed.
func (b *Builder) RemovePublicKey(id string, force bool) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}
	pk, exists := b.document.ownKey(u.String())
	if !exists {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "public key not exists: %s", u)
	}
	if pk.Controller == b.document.subject && pk.Address() == b.document.subject.MethodSpecificID() {
		return diderrors.Errorf(diderrors.ErrUnsupportedOperation, "can not remove the default key %s", u)
	}

	key := u.String()
	if (b.document.authentication[key] || b.document.authorization[key]) && !force {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "key %s is in use", u)
	}
	delete(b.document.authentication, key)
	delete(b.document.authorization, key)

	keys := b.document.publicKeys[:0]
	for _, existing := range b.document.publicKeys {
		if !existing.ID.Equal(u) {
			keys = append(keys, existing)
		}
	}
	b.document.publicKeys = keys
	b.invalidateProofs()

	return nil
}

// AddAuthenticationKey marks a key controlled by the subject as an
// authentication key. A non-empty keyBase58 adds the key first.
func (b *Builder) AddAuthenticationKey(id, keyBase58 string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	if keyBase58 != "" {
		if err := b.AddPublicKey(id, did.DID{}, keyBase58); err != nil {
			return err
		}
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}
	pk, exists := b.document.ownKey(u.String())
	if !exists {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "public key not exists: %s", u)
	}
	if pk.Controller != b.document.subject {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "authentication key %s must be controlled by %s", u, b.document.subject)
	}
	if b.document.authorization[u.String()] {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "key %s is an authorization key", u)
	}

	b.document.authentication[u.String()] = true
	b.invalidateProofs()

	return nil
}

// RemoveAuthenticationKey unmarks an authentication key other than the
// default key.
func (b *Builder) RemoveAuthenticationKey(id string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}
	if !b.document.authentication[u.String()] {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "not an authentication key: %s", u)
	}
	if pk, _ := b.document.ownKey(u.String()); pk.Address() == b.document.subject.MethodSpecificID() {
		return diderrors.Errorf(diderrors.ErrUnsupportedOperation, "can not remove the default key %s", u)
	}

	delete(b.document.authentication, u.String())
	b.invalidateProofs()

	return nil
}

// AddAuthorizationKey marks a key controlled by another DID as an
// authorization key. A non-empty keyBase58 adds the key first.
func (b *Builder) AddAuthorizationKey(id string, controller did.DID, keyBase58 string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}
	if len(b.document.controllers) > 0 {
		return diderrors.Errorf(diderrors.ErrUnsupportedOperation, "customized DID %s can not have authorization keys", b.document.subject)
	}

	if keyBase58 != "" {
		if controller.IsZero() || controller == b.document.subject {
			return diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid authorization key controller %s", controller)
		}
		if err := b.AddPublicKey(id, controller, keyBase58); err != nil {
			return err
		}
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}
	pk, exists := b.document.ownKey(u.String())
	if !exists {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "public key not exists: %s", u)
	}
	if pk.Controller == b.document.subject {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "authorization key %s must not be controlled by %s", u, b.document.subject)
	}

	b.document.authorization[u.String()] = true
	b.invalidateProofs()

	return nil
}

// RemoveAuthorizationKey unmarks an authorization key.
func (b *Builder) RemoveAuthorizationKey(id string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}
	if !b.document.authorization[u.String()] {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "not an authorization key: %s", u)
	}

	delete(b.document.authorization, u.String())
	b.invalidateProofs()

	return nil
}

// AddCredential embeds a credential about the subject.
func (b *Builder) AddCredential(c *vc.Credential) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	if c == nil {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "nil credential")
	}
	if c.Subject().ID != b.document.subject || c.ID().DID() != b.document.subject {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "credential %s is not about %s", c.ID(), b.document.subject)
	}
	if _, exists := b.document.Credential(c.ID()); exists {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "credential already exists: %s", c.ID())
	}

	b.document.credentials = append(b.document.credentials, c)
	sortCredentials(b.document.credentials)
	b.invalidateProofs()

	return nil
}

// RemoveCredential removes an embedded credential.
func (b *Builder) RemoveCredential(id string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}

	credentials := b.document.credentials[:0]
	found := false
	for _, c := range b.document.credentials {
		if c.ID().Equal(u) {
			found = true
			continue
		}
		credentials = append(credentials, c)
	}
	if !found {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "credential not exists: %s", u)
	}

	b.document.credentials = credentials
	b.invalidateProofs()

	return nil
}

// AddService adds a service. props must not use the reserved member names.
func (b *Builder) AddService(id, svcType, endpoint string, props map[string]interface{}) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}
	if svcType == "" || endpoint == "" {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "service %s needs type and endpoint", u)
	}
	if _, exists := b.document.Service(u); exists {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "service already exists: %s", u)
	}

	properties := make(map[string]interface{}, len(props))
	for k, v := range props {
		if isReservedServiceKey(k) {
			return diderrors.Errorf(diderrors.ErrIllegalArgument, "reserved service property: %s", k)
		}
		properties[k] = v
	}

	b.document.services = append(b.document.services, Service{
		ID:         u,
		Type:       svcType,
		Endpoint:   endpoint,
		Properties: properties,
	})
	sortServices(b.document.services)
	b.invalidateProofs()

	return nil
}

// RemoveService removes a service.
func (b *Builder) RemoveService(id string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := b.keyID(id)
	if err != nil {
		return err
	}

	services := b.document.services[:0]
	found := false
	for _, svc := range b.document.services {
		if svc.ID.Equal(u) {
			found = true
			continue
		}
		services = append(services, svc)
	}
	if !found {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "service not exists: %s", u)
	}

	b.document.services = services
	b.invalidateProofs()

	return nil
}

func maxExpires() time.Time {
	return util.Now().AddDate(MaxValidYears, 0, 0)
}

// SetExpires sets the expiration, at most MaxValidYears from now.
func (b *Builder) SetExpires(t time.Time) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	t = t.UTC().Truncate(time.Second)
	if t.After(maxExpires()) {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "invalid expires, out of range")
	}

	b.document.expires = t
	b.invalidateProofs()

	return nil
}

// SetDefaultExpires sets the expiration to MaxValidYears from now.
func (b *Builder) SetDefaultExpires() error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	b.document.expires = maxExpires()
	b.invalidateProofs()

	return nil
}

// Seal signs the document with the default key, or with the default key of
// the effective controller for a customized DID, and invalidates the
// builder. Other controllers add their proofs with CoSign.
func (b *Builder) Seal(ctx context.Context, ks keystore.KeyStore, password string) (*Document, error) {
	if err := b.checkNotSealed(); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "password is empty")
	}

	doc := b.document
	if doc.expires.IsZero() {
		doc.expires = maxExpires()
	}
	if b.processor.Enabled() {
		doc.contexts = append([]string(nil), schema.DocumentContexts...)
	}

	if err := doc.sanitizeContent(); err != nil {
		return nil, fmt.Errorf("%w: %w", diderrors.ErrMalformedDocument, err)
	}

	signer := doc
	if doc.IsCustomized() {
		if b.controller == nil {
			return nil, fmt.Errorf("%s: %w", doc.subject, diderrors.ErrNoEffectiveController)
		}
		signer = b.controller
		doc.effectiveController = signer.subject
	}

	if err := doc.addProof(ctx, signer, ks, password); err != nil {
		return nil, err
	}

	b.sealed = true
	b.document = nil

	logger.Debug("Sealed document", logfields.WithDID(doc.subject), logfields.WithCount(len(doc.proofs)))

	return doc, nil
}

// CoSign returns a copy of a customized document with a proof of one more
// controller added. It fails with diderrors.ErrAlreadySigned if the
// controller signed already and returns the document unchanged once it
// carries all required proofs.
func (d *Document) CoSign(ctx context.Context, controller *Document, ks keystore.KeyStore, password string) (*Document, error) {
	if !d.IsCustomized() {
		return nil, fmt.Errorf("%s: %w", d.subject, diderrors.ErrNotCustomizedDID)
	}
	if controller == nil || !d.HasController(controller.subject) {
		return nil, diderrors.Errorf(diderrors.ErrNotController, "not a controller of %s", d.subject)
	}
	if password == "" {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "password is empty")
	}
	if d.IsQualified() {
		return d, nil
	}

	doc := d.clone()
	doc.controllerDocs[controller.subject] = controller
	if err := doc.addProof(ctx, controller, ks, password); err != nil {
		return nil, err
	}

	logger.Debug("Co-signed document", logfields.WithDID(doc.subject),
		logfields.WithController(controller.subject), logfields.WithCount(len(doc.proofs)))

	return doc, nil
}

func (d *Document) addProof(ctx context.Context, signer *Document, ks keystore.KeyStore, password string) error {
	for _, p := range d.proofs {
		if p.Creator.DID() == signer.subject {
			return fmt.Errorf("%s signed %s: %w", signer.subject, d.subject, diderrors.ErrAlreadySigned)
		}
	}

	signKey, ok := signer.DefaultPublicKeyID()
	if !ok {
		return fmt.Errorf("%s: %w", signer.subject, diderrors.ErrNoEffectiveController)
	}
	if !ks.ContainsPrivateKey(signKey) {
		return diderrors.Errorf(diderrors.ErrInvalidKey, "no private key for %s", signKey)
	}

	data, err := d.SigningInput()
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}

	sig, err := ks.Sign(ctx, signKey, password, data)
	if err != nil {
		return fmt.Errorf("failed to sign document: %w", err)
	}

	d.proofs = append(d.proofs, Proof{
		Type:      crypto.KeyTypeSecp256k1,
		Created:   util.Now(),
		Creator:   signKey,
		Signature: crypto.EncodeSignature(sig),
	})
	sortProofs(d.proofs)

	return nil
}

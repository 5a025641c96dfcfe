package azddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/dns/armdns"
	"go.uber.org/zap"
)

// AzureConfig locates the record set and the service principal allowed to change it.
type AzureConfig struct {
	TenantID            string
	ClientID            string
	CertificatePath     string // PEM or PKCS#12 holding the certificate and its private key
	CertificatePassword string
	SubscriptionID      string
	ResourceGroup       string
	ZoneName            string
	RecordSetName       string
}

// recordSetsAPI is the subset of *armdns.RecordSetsClient used here.
type recordSetsAPI interface {
	Get(ctx context.Context, resourceGroupName string, zoneName string, relativeRecordSetName string, recordType armdns.RecordType, options *armdns.RecordSetsClientGetOptions) (armdns.RecordSetsClientGetResponse, error)
	CreateOrUpdate(ctx context.Context, resourceGroupName string, zoneName string, relativeRecordSetName string, recordType armdns.RecordType, parameters armdns.RecordSet, options *armdns.RecordSetsClientCreateOrUpdateOptions) (armdns.RecordSetsClientCreateOrUpdateResponse, error)
}

// azureProvider implements Provider for a single A record set in Azure DNS.
type azureProvider struct {
	cfg    AzureConfig
	api    recordSetsAPI
	logger *zap.Logger
}

func newAzureProvider(cfg AzureConfig, httpClient *http.Client) (*azureProvider, error) {
	certData, err := os.ReadFile(cfg.CertificatePath)
	if err != nil {
		return nil, &ConfigError{Key: "certificate_path", Err: err}
	}
	var password []byte
	if cfg.CertificatePassword != "" {
		password = []byte(cfg.CertificatePassword)
	}
	certs, key, err := azidentity.ParseCertificates(certData, password)
	if err != nil {
		return nil, &ConfigError{Key: "certificate_path", Err: fmt.Errorf("error parsing certificate: %w", err)}
	}

	var clientOptions azcore.ClientOptions
	if httpClient != nil {
		clientOptions.Transport = httpClient
	}
	cred, err := azidentity.NewClientCertificateCredential(cfg.TenantID, cfg.ClientID, certs, key,
		&azidentity.ClientCertificateCredentialOptions{ClientOptions: clientOptions})
	if err != nil {
		return nil, fmt.Errorf("error creating certificate credential: %w", err)
	}
	client, err := armdns.NewRecordSetsClient(cfg.SubscriptionID, cred, &arm.ClientOptions{ClientOptions: clientOptions})
	if err != nil {
		return nil, fmt.Errorf("error creating record sets client: %w", err)
	}
	return &azureProvider{cfg: cfg, api: client, logger: zap.NewNop()}, nil
}

func (p *azureProvider) SetLogger(l *zap.Logger) { p.logger = l }

// GetRecord implements Provider.
func (p *azureProvider) GetRecord(ctx context.Context) (*Record, error) {
	p.logger.Debug("reading record set",
		zap.String("resource_group", p.cfg.ResourceGroup),
		zap.String("zone", p.cfg.ZoneName),
		zap.String("record", p.cfg.RecordSetName))

	resp, err := p.api.Get(ctx, p.cfg.ResourceGroup, p.cfg.ZoneName, p.cfg.RecordSetName, armdns.RecordTypeA, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error reading record set %s in zone %s: %w", p.cfg.RecordSetName, p.cfg.ZoneName, err)
	}
	return fromRecordSet(resp.RecordSet), nil
}

// PutRecord implements Provider.
func (p *azureProvider) PutRecord(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	params := toRecordSet(rec)
	p.logger.Debug("writing record set",
		zap.String("record", p.cfg.RecordSetName),
		zap.Int("addresses", len(params.Properties.ARecords)),
		zap.Int64("ttl", rec.TTL))

	_, err := p.api.CreateOrUpdate(ctx, p.cfg.ResourceGroup, p.cfg.ZoneName, p.cfg.RecordSetName, armdns.RecordTypeA, params, nil)
	if err != nil {
		return fmt.Errorf("error writing record set %s in zone %s: %w", p.cfg.RecordSetName, p.cfg.ZoneName, err)
	}
	return nil
}

func fromRecordSet(rs armdns.RecordSet) *Record {
	rec := &Record{}
	if rs.Properties == nil {
		return rec
	}
	if rs.Properties.TTL != nil {
		rec.TTL = *rs.Properties.TTL
	}
	for _, a := range rs.Properties.ARecords {
		if a == nil || a.IPv4Address == nil {
			continue
		}
		if ip, err := netip.ParseAddr(*a.IPv4Address); err == nil {
			rec.Addrs = append(rec.Addrs, ip)
		}
	}
	if len(rs.Properties.Metadata) > 0 {
		rec.Metadata = make(map[string]string, len(rs.Properties.Metadata))
		for k, v := range rs.Properties.Metadata {
			if v != nil {
				rec.Metadata[k] = *v
			}
		}
	}
	return rec
}

func toRecordSet(rec *Record) armdns.RecordSet {
	props := &armdns.RecordSetProperties{
		TTL:      to.Ptr(rec.TTL),
		ARecords: []*armdns.ARecord{},
	}
	for _, a := range rec.Addrs {
		if !a.Is4() {
			continue
		}
		props.ARecords = append(props.ARecords, &armdns.ARecord{IPv4Address: to.Ptr(a.String())})
	}
	if len(rec.Metadata) > 0 {
		props.Metadata = make(map[string]*string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			props.Metadata[k] = to.Ptr(v)
		}
	}
	return armdns.RecordSet{Properties: props}
}

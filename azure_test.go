package azddns

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/dns/armdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRecordSets struct {
	rs     *armdns.RecordSet
	getErr error
	putErr error

	gotGroup, gotZone, gotName string
	written                    *armdns.RecordSet
}

func (f *fakeRecordSets) Get(_ context.Context, group, zone, name string, typ armdns.RecordType, _ *armdns.RecordSetsClientGetOptions) (armdns.RecordSetsClientGetResponse, error) {
	f.gotGroup, f.gotZone, f.gotName = group, zone, name
	if typ != armdns.RecordTypeA {
		return armdns.RecordSetsClientGetResponse{}, errors.New("unexpected record type")
	}
	if f.getErr != nil {
		return armdns.RecordSetsClientGetResponse{}, f.getErr
	}
	if f.rs == nil {
		return armdns.RecordSetsClientGetResponse{}, responseError(http.StatusNotFound, "NotFound")
	}
	return armdns.RecordSetsClientGetResponse{RecordSet: *f.rs}, nil
}

func (f *fakeRecordSets) CreateOrUpdate(_ context.Context, group, zone, name string, _ armdns.RecordType, rs armdns.RecordSet, _ *armdns.RecordSetsClientCreateOrUpdateOptions) (armdns.RecordSetsClientCreateOrUpdateResponse, error) {
	f.gotGroup, f.gotZone, f.gotName = group, zone, name
	if f.putErr != nil {
		return armdns.RecordSetsClientCreateOrUpdateResponse{}, f.putErr
	}
	f.written = &rs
	f.rs = &rs
	return armdns.RecordSetsClientCreateOrUpdateResponse{RecordSet: rs}, nil
}

func responseError(status int, code string) *azcore.ResponseError {
	req := httptest.NewRequest(http.MethodGet, "https://management.azure.com/subscriptions/sub/resourceGroups/rg-home", nil)
	return &azcore.ResponseError{
		ErrorCode:  code,
		StatusCode: status,
		RawResponse: &http.Response{
			StatusCode: status,
			Status:     strconv.Itoa(status) + " " + http.StatusText(status),
			Request:    req,
			Body:       http.NoBody,
		},
	}
}

func newTestProvider(t *testing.T, api recordSetsAPI) *azureProvider {
	return &azureProvider{
		cfg:    AzureConfig{ResourceGroup: "rg-home", ZoneName: "example.com", RecordSetName: "dynamic"},
		api:    api,
		logger: zaptest.NewLogger(t),
	}
}

func TestAzureGetRecord(t *testing.T) {
	api := &fakeRecordSets{rs: &armdns.RecordSet{Properties: &armdns.RecordSetProperties{
		TTL:      to.Ptr[int64](600),
		ARecords: []*armdns.ARecord{{IPv4Address: to.Ptr("203.0.113.5")}, nil, {IPv4Address: to.Ptr("bogus")}},
		Metadata: map[string]*string{"owner": to.Ptr("ops")},
	}}}
	p := newTestProvider(t, api)

	rec, err := p.GetRecord(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("203.0.113.5")}, rec.Addrs)
	assert.Equal(t, int64(600), rec.TTL)
	assert.Equal(t, map[string]string{"owner": "ops"}, rec.Metadata)
	assert.Equal(t, "rg-home", api.gotGroup)
	assert.Equal(t, "example.com", api.gotZone)
	assert.Equal(t, "dynamic", api.gotName)
}

func TestAzureGetRecordNotFound(t *testing.T) {
	p := newTestProvider(t, &fakeRecordSets{})
	_, err := p.GetRecord(context.Background())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestAzureGetRecordFailure(t *testing.T) {
	forbidden := responseError(http.StatusForbidden, "AuthorizationFailed")
	p := newTestProvider(t, &fakeRecordSets{getErr: forbidden})

	_, err := p.GetRecord(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRecordNotFound)
	var respErr *azcore.ResponseError
	assert.ErrorAs(t, err, &respErr)
}

func TestAzurePutRecord(t *testing.T) {
	api := &fakeRecordSets{}
	p := newTestProvider(t, api)

	err := p.PutRecord(context.Background(), &Record{
		Addrs:    []netip.Addr{netip.MustParseAddr("203.0.113.9"), netip.MustParseAddr("2001:db8::1")},
		TTL:      300,
		Metadata: map[string]string{"owner": "ops"},
	})
	require.NoError(t, err)
	require.NotNil(t, api.written)

	props := api.written.Properties
	require.NotNil(t, props)
	assert.Equal(t, int64(300), *props.TTL)
	require.Len(t, props.ARecords, 1)
	assert.Equal(t, "203.0.113.9", *props.ARecords[0].IPv4Address)
	assert.Equal(t, "ops", *props.Metadata["owner"])

	// what was written reads back the same
	rec, err := p.GetRecord(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("203.0.113.9")}, rec.Addrs)
}

func TestAzurePutRecordFailure(t *testing.T) {
	p := newTestProvider(t, &fakeRecordSets{putErr: errors.New("conflict")})
	err := p.PutRecord(context.Background(), &Record{Addrs: []netip.Addr{netip.MustParseAddr("203.0.113.9")}, TTL: 300})
	assert.ErrorContains(t, err, "conflict")
	assert.Error(t, p.PutRecord(context.Background(), nil))
}

func TestFromRecordSetWithoutProperties(t *testing.T) {
	rec := fromRecordSet(armdns.RecordSet{})
	assert.False(t, rec.First().IsValid())
	assert.Zero(t, rec.TTL)
}

func TestNewAzureProviderBadCertificate(t *testing.T) {
	_, err := newAzureProvider(AzureConfig{CertificatePath: t.TempDir() + "/missing.pem"}, nil)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "certificate_path", cerr.Key)
}

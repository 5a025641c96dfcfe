package azddns

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// DefaultIPService answers GET requests with the caller's IPv4 address in plain text.
const DefaultIPService = "https://api.ipify.org"

// WebResolver constructs a resolver which uses external web services to look up the public IPv4 address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IPv4 address as the first line of the response body.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If several are given,
// then the first three are queried concurrently and the resolver only returns successfully if the first two non-error responses agree.
// Control over a DNS record is sensitive enough to want two witnesses.
//
// With no serviceURL, DefaultIPService is used.
func WebResolver(serviceURL ...string) (Resolver, error) {
	if len(serviceURL) == 0 {
		serviceURL = []string{DefaultIPService}
	}
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		if pu.Scheme != "http" && pu.Scheme != "https" {
			return nil, fmt.Errorf("unsupported scheme in %q", u)
		}
		URLs = append(URLs, pu)
	}
	return &webResolver{serviceURLs: URLs}, nil
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []*url.URL
}

func (wr *webResolver) SetHTTPClient(c *http.Client) { wr.httpClient = c }

// Resolve implements Resolver.
func (wr *webResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return nil, errors.New("no external IP lookup services were provided")
	}
	if len(wr.serviceURLs) == 1 {
		ip, err := wr.lookup(ctx, wr.serviceURLs[0])
		if err != nil {
			return nil, err
		}
		return []netip.Addr{ip}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	useCount := len(wr.serviceURLs)
	if useCount > 3 {
		useCount = 3
	}
	results := make(chan result, useCount)
	for _, u := range wr.serviceURLs[:useCount] {
		u := u
		go func() {
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}

	var errs []error
	var first netip.Addr
	for i := 0; i < useCount; i++ {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if !first.IsValid() {
			first = r.addr
			continue
		}
		if first != r.addr {
			return nil, fmt.Errorf("IP services did not agree on our IP: %s != %s", first, r.addr)
		}
		return []netip.Addr{first}, nil
	}
	return nil, fmt.Errorf("not enough IP services responded without errors: %w", errors.Join(errs...))
}

func (wr *webResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// bounds the call even when the caller's context has no deadline and the client has no timeout
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request to %s returned %s", url.Host, resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	if !ip.Is4() {
		return netip.Addr{}, fmt.Errorf("%s returned %s which is not an IPv4 address", url.Host, ip)
	}
	return ip, nil
}

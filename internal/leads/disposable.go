// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package leads

import (
	"bufio"
	_ "embed"
	"strings"
	"sync"
)

//go:embed disposable_domains.txt
var disposableDomainsRaw string

var (
	disposableOnce sync.Once
	disposableSet  map[string]struct{}
)

// loadDisposableDomains parses the embedded blocklist. Lines starting with
// # are comments.
func loadDisposableDomains() {
	disposableSet = make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(disposableDomainsRaw))
	for scanner.Scan() {
		line := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		disposableSet[line] = struct{}{}
	}
}

// IsDisposable reports whether the email's domain is on the disposable
// provider blocklist. Subdomains of listed domains are also blocked.
func IsDisposable(email string) bool {
	disposableOnce.Do(loadDisposableDomains)

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	if _, ok := disposableSet[domain]; ok {
		return true
	}
	for {
		dot := strings.Index(domain, ".")
		if dot < 0 {
			return false
		}
		domain = domain[dot+1:]
		if _, ok := disposableSet[domain]; ok {
			return true
		}
	}
}

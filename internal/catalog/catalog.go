// Package catalog keeps the admin panel records of a scope: the sales ledger
// and the XML file names attached to each package.
package catalog

import (
	"errors"
	"strings"
)

// Storage keys
const (
	SalesKey = "muxSalesData"
	FilesKey = "muxXmlFiles"
)

// Package is a sellable package tier
type Package string

const (
	PackageBasic   Package = "basic"
	PackagePremium Package = "premium"
	PackagePro     Package = "pro"
)

// Packages lists the tiers in display order
var Packages = []Package{PackageBasic, PackagePremium, PackagePro}

// ErrUnknownPackage is returned for a package name outside Packages
var ErrUnknownPackage = errors.New("unknown package")

// ParsePackage matches name against the known tiers, ignoring case.
func ParsePackage(name string) (Package, error) {
	p := Package(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Packages {
		if p == known {
			return p, nil
		}
	}
	return "", ErrUnknownPackage
}

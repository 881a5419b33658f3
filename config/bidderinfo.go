package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"
	"gopkg.in/yaml.v2"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/util/sliceutil"
)

// BidderInfos contains a mapping of bidder name to bidder info.
type BidderInfos map[string]BidderInfo

// BidderInfo specifies the static description of a bidder, apart from its endpoint.
type BidderInfo struct {
	Enabled      bool              // copied from adapter config for convenience.
	Maintainer   *MaintainerInfo   `yaml:"maintainer"`
	Capabilities *CapabilitiesInfo `yaml:"capabilities"`
	// Currencies are the bid currencies the bidder can respond in. Empty means any.
	Currencies []string `yaml:"currencies"`
	// ParamsSchema is the JSON schema file, relative to the info file, of imp.ext.prebid.bidder.<name>.
	ParamsSchema string `yaml:"paramsSchema"`
}

// MaintainerInfo specifies the support email address for a bidder.
type MaintainerInfo struct {
	Email string `yaml:"email"`
}

// CapabilitiesInfo specifies the supported platforms for a bidder.
type CapabilitiesInfo struct {
	App  *PlatformInfo `yaml:"app"`
	Site *PlatformInfo `yaml:"site"`
}

// PlatformInfo specifies the supported media types for a bidder.
type PlatformInfo struct {
	MediaTypes []openrtb_ext.BidType `yaml:"mediaTypes"`
}

// AcceptsAnyOf reports whether the bidder can respond in at least one of currencies. A bidder
// which declares no currencies accepts all of them, and so does a request which names none.
func (info BidderInfo) AcceptsAnyOf(currencies []string) bool {
	if len(info.Currencies) == 0 || len(currencies) == 0 {
		return true
	}
	return sliceutil.ContainsAnyIgnoreCase(info.Currencies, currencies)
}

// LoadBidderInfoFromDisk parses the <path>/<bidder>.yaml file of every bidder.
func LoadBidderInfoFromDisk(path string, adapterConfigs map[string]Adapter, bidders []string) (BidderInfos, error) {
	reader := infoReaderFromDisk{path}
	return loadBidderInfo(reader, adapterConfigs, bidders)
}

func loadBidderInfo(r infoReader, adapterConfigs map[string]Adapter, bidders []string) (BidderInfos, error) {
	infos := BidderInfos{}

	for _, bidder := range bidders {
		data, err := r.Read(bidder)
		if err != nil {
			return nil, err
		}

		info := BidderInfo{}
		if err := yaml.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("error parsing yaml for bidder %s: %v", bidder, err)
		}

		info.Enabled = isEnabledByConfig(adapterConfigs, bidder)
		infos[bidder] = info
	}

	return infos, nil
}

func isEnabledByConfig(adapterConfigs map[string]Adapter, bidderName string) bool {
	a, ok := adapterConfigs[strings.ToLower(bidderName)]
	return ok && !a.Disabled
}

type infoReader interface {
	Read(bidder string) ([]byte, error)
}

type infoReaderFromDisk struct {
	path string
}

func (r infoReaderFromDisk) Read(bidder string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.path, bidder+".yaml"))
}

// EnabledBidders lists the bidders which may be invited to an auction.
func (infos BidderInfos) EnabledBidders() []openrtb_ext.BidderName {
	names := make([]openrtb_ext.BidderName, 0, len(infos))
	for name, info := range infos {
		if info.Enabled {
			names = append(names, openrtb_ext.BidderName(name))
		}
	}
	return names
}

// IsCallAllowed lets only bidders which are configured and enabled be called.
func (infos BidderInfos) IsCallAllowed(bidder openrtb_ext.BidderName, request *openrtb2.BidRequest) bool {
	info, ok := infos[string(bidder)]
	return ok && info.Enabled
}

// AcceptsAnyOf reports whether bidder can respond in one of currencies. Bidders without an info
// file are not restricted.
func (infos BidderInfos) AcceptsAnyOf(bidder openrtb_ext.BidderName, currencies []string) bool {
	info, ok := infos[string(bidder)]
	if !ok {
		return true
	}
	return info.AcceptsAnyOf(currencies)
}

package hec

import (
	"fmt"

	"github.com/mosajjal/Go-Splunk-HTTP/splunk/v2"

	"github.com/mosajjal/cwlogs2hec/pkg/models"
)

// CheckHealth asks the HEC health endpoint whether it accepts events.
func (c *Client) CheckHealth(dc *models.DeliveryConfig) error {
	splunkClient := splunk.NewClient(
		c.httpClient,
		CollectorURL(dc.HECEndpoint),
		dc.HECToken,
		c.channelID,
		"",
		dc.SourceType,
		"",
	)
	if err := splunkClient.CheckHealth(); err != nil {
		return fmt.Errorf("HEC endpoint %s is unhealthy: %w", dc.HECEndpoint, err)
	}
	return nil
}

package fakestore

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	qc "github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/orders"
)

// GetProducts returns the products for ids, in ids order; duplicate ids
// share one lookup. Products found in the tier are not requested. The rest
// are requested in parallel and written back to the tier under the
// generations observed before the requests started. The first failure
// cancels the remaining requests and is returned.
func (c *Client) GetProducts(ctx context.Context, ids []int) ([]orders.Product, error) {
	if len(ids) == 0 {
		return []orders.Product{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.Itoa(id)
	}

	found := make(map[string]orders.Product, len(ids))
	missing := uniq(keys)
	var gens map[string]uint64
	if c.products != nil {
		gens = c.products.SnapshotGens(ctx, missing)
		hits, miss, err := c.products.GetBulk(ctx, keys)
		if err != nil {
			c.log.Warn("product tier read failed", qc.Fields{"err": err})
		} else {
			found, missing = hits, miss
		}
	}

	fetched, err := c.fetchProducts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if c.products != nil && len(fetched) > 0 {
		if err := c.products.SetBulkWithGens(ctx, fetched, gens, 0); err != nil {
			c.log.Warn("product tier write failed", qc.Fields{"err": err})
		}
	}
	c.log.Debug("products resolved", qc.Fields{"requested": len(ids), "tier_hits": len(found), "fetched": len(fetched)})

	out := make([]orders.Product, len(ids))
	for i, k := range keys {
		p, ok := found[k]
		if !ok {
			p = fetched[k]
		}
		out[i] = p
	}
	return out, nil
}

func (c *Client) fetchProducts(ctx context.Context, keys []string) (map[string]orders.Product, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	res := make([]orders.Product, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, k := range keys {
		g.Go(func() error {
			p, err := get[*orders.Product](gctx, c, "products/"+k)
			if err != nil {
				return err
			}
			if p == nil || p.ID == 0 {
				return fmt.Errorf("product %s: %w", k, ErrNotFound)
			}
			res[i] = *p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]orders.Product, len(keys))
	for i, k := range keys {
		out[k] = res[i]
	}
	return out, nil
}

func uniq(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

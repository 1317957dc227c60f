package shopify

import (
	"context"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const variantsPerProduct = 100

const productsQuery = `query products($cursor: String) {
  products(first: 50, after: $cursor) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        status
        variants(first: 100) {
          pageInfo { hasNextPage }
          edges { node { id barcode price compareAtPrice } }
        }
      }
    }
  }
}`

const variantCostsQuery = `query productVariants($cursor: String) {
  productVariants(first: 250, after: $cursor) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        barcode
        inventoryItem { id unitCost { amount } }
      }
    }
  }
}`

type productsResponse struct {
	Products Connection[productNode] `json:"products"`
}

type productNode struct {
	ID       string                  `json:"id"`
	Status   string                  `json:"status"`
	Variants Connection[variantNode] `json:"variants"`
}

type variantNode struct {
	ID             string  `json:"id"`
	Barcode        *string `json:"barcode"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compareAtPrice"`
}

type variantCostsResponse struct {
	ProductVariants Connection[variantCostNode] `json:"productVariants"`
}

type variantCostNode struct {
	Barcode       *string        `json:"barcode"`
	InventoryItem *inventoryItem `json:"inventoryItem"`
}

type inventoryItem struct {
	ID       string `json:"id"`
	UnitCost *struct {
		Amount string `json:"amount"`
	} `json:"unitCost"`
}

// CatalogReader reads products, variants and inventory costs
type CatalogReader struct {
	exec   Executor
	logger *zap.Logger
}

var _ catalogsync.CatalogReader = (*CatalogReader)(nil)

// NewCatalogReader creates a CatalogReader on top of exec
func NewCatalogReader(exec Executor, logger *zap.Logger) *CatalogReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogReader{exec: exec, logger: logger}
}

// FetchProducts returns every product with up to 100 variants each.
// Products with more variants are logged; the extra variants are not read.
func (r *CatalogReader) FetchProducts(ctx context.Context) ([]catalogsync.RemoteProduct, error) {
	ctx, span := telemetry.StartSpan(ctx, "shopify.fetch_products")
	defer span.End()

	nodes, err := CollectAll(ctx, r.exec, productsQuery, func(resp *productsResponse) Page[productNode] {
		return resp.Products.Page()
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	products := make([]catalogsync.RemoteProduct, 0, len(nodes))
	variantCount := 0
	for _, node := range nodes {
		if node.Variants.PageInfo.HasNextPage {
			r.logger.Warn("Product has more variants than are read",
				zap.String("product_id", node.ID),
				zap.Int("limit", variantsPerProduct),
			)
		}
		products = append(products, toRemoteProduct(node))
		variantCount += len(node.Variants.Edges)
	}

	telemetry.SetAttributes(span, "products", len(products), "variants", variantCount)
	r.logger.Info("Fetched storefront products",
		zap.Int("products", len(products)),
		zap.Int("variants", variantCount),
	)
	return products, nil
}

// FetchVariantCosts indexes every barcoded variant by barcode.
// When two variants share a barcode the later one wins.
func (r *CatalogReader) FetchVariantCosts(ctx context.Context) (catalogsync.CostIndex, error) {
	ctx, span := telemetry.StartSpan(ctx, "shopify.fetch_variant_costs")
	defer span.End()

	nodes, err := CollectAll(ctx, r.exec, variantCostsQuery, func(resp *variantCostsResponse) Page[variantCostNode] {
		return resp.ProductVariants.Page()
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	index := make(catalogsync.CostIndex, len(nodes))
	for _, node := range nodes {
		barcode := barcodeOf(node.Barcode)
		if barcode.IsEmpty() || node.InventoryItem == nil {
			continue
		}
		var cost *string
		if node.InventoryItem.UnitCost != nil {
			amount := catalogsync.CanonicalDecimal(node.InventoryItem.UnitCost.Amount)
			cost = &amount
		}
		index[barcode] = catalogsync.VariantCost{
			InventoryItemID: node.InventoryItem.ID,
			UnitCost:        cost,
		}
	}

	telemetry.SetAttributes(span, "variants", len(nodes), "indexed", len(index))
	r.logger.Info("Fetched storefront variant costs",
		zap.Int("variants", len(nodes)),
		zap.Int("indexed", len(index)),
	)
	return index, nil
}

func toRemoteProduct(node productNode) catalogsync.RemoteProduct {
	status := catalogsync.ProductStatus(node.Status)
	product := catalogsync.RemoteProduct{
		ID:       node.ID,
		Status:   status,
		Variants: make([]catalogsync.RemoteVariant, 0, len(node.Variants.Edges)),
	}
	for _, edge := range node.Variants.Edges {
		v := edge.Node
		product.Variants = append(product.Variants, catalogsync.RemoteVariant{
			ID:             v.ID,
			Barcode:        barcodeOf(v.Barcode),
			Price:          catalogsync.CanonicalDecimal(v.Price),
			CompareAtPrice: catalogsync.CanonicalDecimalPtr(v.CompareAtPrice),
			ProductID:      node.ID,
			ProductStatus:  status,
		})
	}
	return product
}

func barcodeOf(s *string) catalogsync.Barcode {
	if s == nil {
		return ""
	}
	return catalogsync.Barcode(*s)
}

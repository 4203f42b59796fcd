package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/sacola/internal/domain/product"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func salePrice(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

// defaultCatalog is the demo storefront seeded when no products file is given.
func defaultCatalog() []product.Product {
	return []product.Product{
		{
			ID:       "camiseta-basica",
			Name:     "Camiseta Básica Algodão",
			Brand:    "Sacola",
			Category: "camisetas",
			Price:    price("59.90"),
			ImageURL: "img/camiseta-basica.jpg",
			Variants: []product.Variant{
				{Size: "P", Color: "Preto", Stock: 20},
				{Size: "M", Color: "Preto", Stock: 25},
				{Size: "G", Color: "Preto", Stock: 15},
				{Size: "M", Color: "Branco", Stock: 18},
				{Size: "G", Color: "Branco", Stock: 4},
			},
		},
		{
			ID:        "vestido-midi",
			Name:      "Vestido Midi Floral",
			Brand:     "Sacola",
			Category:  "vestidos",
			Price:     price("199.90"),
			SalePrice: salePrice("149.90"),
			ImageURL:  "img/vestido-midi.jpg",
			Variants: []product.Variant{
				{Size: "P", Color: "Azul Marinho", Stock: 6},
				{Size: "M", Color: "Azul Marinho", Stock: 8},
				{Size: "M", Color: "Vermelho", Stock: 3},
			},
		},
		{
			ID:       "calca-jeans-skinny",
			Name:     "Calça Jeans Skinny",
			Brand:    "Índigo",
			Category: "calcas",
			Price:    price("179.90"),
			ImageURL: "img/calca-jeans.jpg",
			Variants: []product.Variant{
				{Size: "38", Color: "Azul Claro", Stock: 10},
				{Size: "40", Color: "Azul Claro", Stock: 12},
				{Size: "42", Color: "Azul Escuro", Stock: 7},
			},
		},
		{
			ID:        "jaqueta-couro",
			Name:      "Jaqueta de Couro Sintético",
			Brand:     "Urbana",
			Category:  "casacos",
			Price:     price("349.90"),
			SalePrice: salePrice("299.90"),
			ImageURL:  "img/jaqueta-couro.jpg",
			Variants: []product.Variant{
				{Size: "M", Color: "Preto", Stock: 5},
				{Size: "G", Color: "Preto", Stock: 2},
			},
		},
		{
			ID:       "tenis-casual",
			Name:     "Tênis Casual Lona",
			Brand:    "Passo",
			Category: "calcados",
			Price:    price("229.90"),
			ImageURL: "https://cdn.sacola.com.br/img/tenis-casual.jpg",
			Variants: []product.Variant{
				{Size: "37", Color: "Off White", Stock: 9},
				{Size: "39", Color: "Off White", Stock: 11},
				{Size: "41", Color: "Caramelo", Stock: 0},
			},
		},
	}
}

// decodeProducts parses a JSON array of products. Prices may be given as
// numbers or strings.
func decodeProducts(data []byte) ([]product.Product, error) {
	var products []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, p := range products {
		if p.ID == "" {
			return nil, errors.Errorf("product #%d: id is required", i)
		}
		if !p.Price.IsPositive() {
			return nil, errors.Errorf("product %s: price must be positive", p.ID)
		}
	}
	return products, nil
}

func decodeProduct(d *jx.Decoder) (p product.Product, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "brand":
			p.Brand, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "imageUrl":
			p.ImageURL, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "salePrice":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var sp decimal.Decimal
			if sp, err = decodeDecimal(d); err == nil {
				p.SalePrice = &sp
			}
		case "variants":
			err = d.Arr(func(d *jx.Decoder) error {
				v, err := decodeVariant(d)
				if err != nil {
					return err
				}
				p.Variants = append(p.Variants, v)
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return p, err
}

func decodeVariant(d *jx.Decoder) (v product.Variant, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "size":
			v.Size, err = d.Str()
		case "color":
			v.Color, err = d.Str()
		case "stock":
			v.Stock, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	})
	return v, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

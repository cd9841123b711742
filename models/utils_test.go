package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLooksLikeDidiDisplayNum(t *testing.T) {
	require.True(t, LooksLikeDidiDisplayNum("#379001"))
	require.True(t, LooksLikeDidiDisplayNum("379001"))
	require.True(t, LooksLikeDidiDisplayNum("1234"))
	require.False(t, LooksLikeDidiDisplayNum("123"))
	require.False(t, LooksLikeDidiDisplayNum("5764607523034234881"))
	require.False(t, LooksLikeDidiDisplayNum("#"))
	require.False(t, LooksLikeDidiDisplayNum("AB1234"))
	require.False(t, LooksLikeDidiDisplayNum(""))
}

func TestNormalizeDisplayNum(t *testing.T) {
	require.Equal(t, "379006", NormalizeDisplayNum(" #379006 "))
	require.Equal(t, "379006", NormalizeDisplayNum("379006"))
}

func TestCleanPrivacyName(t *testing.T) {
	require.Equal(t, "Juan", CleanPrivacyName("Privacy Protection Juan"))
	require.Equal(t, "Ana M", CleanPrivacyName("Ana  M****"))
	require.Equal(t, "", CleanPrivacyName("  "))
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "_379001", SanitizeCodigo("#379001"))
	require.Equal(t, "a.b-c_d", SanitizeCodigo("a.b-c_d"))
	require.Equal(t, "sin_codigo", SanitizeCodigo(" "))
	require.Equal(t, "Pe_a_1", SanitizeCodigo("Peña/1"))
	require.Equal(t, "_", SanitizeCodigo("٣"))
	require.Equal(t, "foto_1.jpg", SanitizePath("foto/1.jpg"))
	require.Equal(t, "sin_nombre", SanitizePath(".."))
	require.Equal(t, "sin_nombre", SanitizePath(""))
}

func TestIsDeliveryServiceName(t *testing.T) {
	found, merchant := IsDeliveryServiceName("Didi Food")
	require.True(t, found)
	require.Equal(t, DidiFood, merchant)

	found, merchant = IsDeliveryServiceName("RAPPI")
	require.True(t, found)
	require.Equal(t, Rappi, merchant)

	found, merchant = IsDeliveryServiceName("Mostrador")
	require.False(t, found)
	require.Equal(t, UnknownMerchant, merchant)
}

func TestOrderFotoCandidates(t *testing.T) {
	o := Order{CodigoIntegracion: "379001", OrderIDCanal: "5764607523034234881", IdentificadorUnico: "379001"}
	require.Equal(t, []string{"379001", "5764607523034234881"}, o.FotoCandidates())

	require.Empty(t, Order{CodigoIntegracion: EmptyField}.FotoCandidates())
}

func TestGroupByMerchant(t *testing.T) {
	orders := []Order{
		{Canal: "Didi Food", MontoPagado: ptr("20000")},
		{Canal: "Rappi", MontoPagado: ptr("15000.5")},
		{Canal: "Didi Food"},
	}

	grouped := GroupByMerchant(orders)
	require.Len(t, grouped[DidiFood], 2)
	require.Len(t, grouped[Rappi], 1)

	out := grouped.Show()
	require.Contains(t, out, "-> Didi Food: 2 orden(es), $20000.00")
	require.Contains(t, out, "-> Rappi: 1 orden(es), $15000.50")
}

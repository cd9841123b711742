package models

type ThirdPartyMerchant string

const (
	Rappi           ThirdPartyMerchant = "Rappi"
	DidiFood        ThirdPartyMerchant = "Didi Food"
	PedidosYa       ThirdPartyMerchant = "PedidosYa"
	InHouse         ThirdPartyMerchant = "Delivery propio"
	UnknownMerchant ThirdPartyMerchant = "—"
)

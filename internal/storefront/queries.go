package storefront

const checkoutFields = `
fragment CheckoutFields on Checkout {
  id
  webUrl
  email
  completedAt
  subtotalPriceV2 { amount currencyCode }
  totalPriceV2 { amount currencyCode }
  shippingAddress {
    firstName lastName address1 address2 city province provinceCode zip country phone
  }
  lineItems(first: 250) {
    edges {
      node {
        id
        title
        quantity
        customAttributes { key value }
        variant { id priceV2 { amount currencyCode } }
      }
    }
  }
}`

const userErrorFields = `checkoutUserErrors { code field message }`

const queryCheckout = `query checkout($id: ID!) {
  node(id: $id) { ... on Checkout { ...CheckoutFields } }
}` + checkoutFields

const mutationCheckoutCreate = `mutation checkoutCreate($input: CheckoutCreateInput!) {
  checkoutCreate(input: $input) { checkout { ...CheckoutFields } ` + userErrorFields + ` }
}` + checkoutFields

const mutationLineItemsAdd = `mutation checkoutLineItemsAdd($checkoutId: ID!, $lineItems: [CheckoutLineItemInput!]!) {
  checkoutLineItemsAdd(checkoutId: $checkoutId, lineItems: $lineItems) { checkout { ...CheckoutFields } ` + userErrorFields + ` }
}` + checkoutFields

const mutationLineItemsUpdate = `mutation checkoutLineItemsUpdate($checkoutId: ID!, $lineItems: [CheckoutLineItemUpdateInput!]!) {
  checkoutLineItemsUpdate(checkoutId: $checkoutId, lineItems: $lineItems) { checkout { ...CheckoutFields } ` + userErrorFields + ` }
}` + checkoutFields

const mutationLineItemsRemove = `mutation checkoutLineItemsRemove($checkoutId: ID!, $lineItemIds: [ID!]!) {
  checkoutLineItemsRemove(checkoutId: $checkoutId, lineItemIds: $lineItemIds) { checkout { ...CheckoutFields } ` + userErrorFields + ` }
}` + checkoutFields

const mutationEmailUpdate = `mutation checkoutEmailUpdateV2($checkoutId: ID!, $email: String!) {
  checkoutEmailUpdateV2(checkoutId: $checkoutId, email: $email) { checkout { ...CheckoutFields } ` + userErrorFields + ` }
}` + checkoutFields

const mutationShippingAddressUpdate = `mutation checkoutShippingAddressUpdateV2($checkoutId: ID!, $shippingAddress: MailingAddressInput!) {
  checkoutShippingAddressUpdateV2(checkoutId: $checkoutId, shippingAddress: $shippingAddress) { checkout { ...CheckoutFields } ` + userErrorFields + ` }
}` + checkoutFields

const mutationCustomerAssociate = `mutation checkoutCustomerAssociateV2($checkoutId: ID!, $customerAccessToken: String!) {
  checkoutCustomerAssociateV2(checkoutId: $checkoutId, customerAccessToken: $customerAccessToken) { checkout { ...CheckoutFields } ` + userErrorFields + ` }
}` + checkoutFields

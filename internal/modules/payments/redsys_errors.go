package payments

import (
	"fmt"
	"strings"
)

// sisErrors maps Redsys SIS response codes to the official descriptions, as
// published by Redsys (in Spanish).
var sisErrors = map[string]string{
	"0101":    "Tarjeta Caducada.",
	"0102":    "Tarjeta en excepción transitoria o bajo sospecha de fraude.",
	"0104":    "Operación no permitida para esa tarjeta o terminal.",
	"0106":    "Intentos de PIN excedidos.",
	"0116":    "Disponible Insuficiente.",
	"0118":    "Tarjeta no Registrada.",
	"0125":    "Tarjeta no efectiva.",
	"0129":    "Código de seguridad (CVV2/CVC2) incorrecto.",
	"0180":    "Tarjeta ajena al servicio.",
	"0184":    "Error en la autenticación del titular.",
	"0190":    "Denegación sin especificar motivo.",
	"0191":    "Fecha de caducidad errónea.",
	"0202":    "Tarjeta en excepción transitoria o bajo sospecha de fraude con retirada de tarjeta.",
	"0904":    "Comercio no registrado en FUC.",
	"0909":    "Error de sistema.",
	"0912":    "Emisor no disponible.",
	"0913":    "Pedido repetido.",
	"0944":    "Sesión Incorrecta.",
	"0950":    "Operación de devolución no permitida.",
	"9064":    "Número de posiciones de la tarjeta incorrecto.",
	"9078":    "No existe método de pago válido para esa tarjeta.",
	"9093":    "Tarjeta no existente.",
	"9094":    "Rechazo servidores internacionales.",
	"9104":    "Comercio con “titular seguro” y titular sin clave de compra segura.",
	"9218":    "El comercio no permite op. seguras por entrada /operaciones.",
	"9253":    "Tarjeta no cumple el check-digit.",
	"9256":    "El comercio no puede realizar preautorizaciones.",
	"9257":    "Esta tarjeta no permite operativa de preautorizaciones.",
	"9261":    "Operación detenida por superar el control de restricciones en la entrada al SIS.",
	"9912":    "Emisor no disponible.",
	"9913":    "Error en la confirmación que el comercio envía al TPV Virtual (solo aplicable en la opción de sincronización SOAP).",
	"9914":    "Confirmación “KO” del comercio (solo aplicable en la opción de sincronización SOAP).",
	"9915":    "A petición del usuario se ha cancelado el pago.",
	"9928":    "Anulación de autorización en diferido realizada por el SIS (proceso batch).",
	"9929":    "Anulación de autorización en diferido realizada por el comercio.",
	"9997":    "Se está procesando otra transacción en SIS con la misma tarjeta.",
	"9998":    "Operación en proceso de solicitud de datos de tarjeta.",
	"9999":    "Operación que ha sido redirigida al emisor a autenticar.",
	"SIS0007": "Error al desmontar el XML de entrada.",
	"SIS0008": "Error falta Ds_Merchant_MerchantCode.",
	"SIS0009": "Error de formato en Ds_Merchant_MerchantCode.",
	"SIS0010": "Error falta Ds_Merchant_Terminal.",
	"SIS0011": "Error de formato en Ds_Merchant_Terminal.",
	"SIS0014": "Error de formato en Ds_Merchant_Order.",
	"SIS0015": "Error falta Ds_Merchant_Currency.",
	"SIS0016": "Error de formato en Ds_Merchant_Currency.",
	"SIS0017": "Error no se admiten operaciones en pesetas.",
	"SIS0018": "Error falta Ds_Merchant_Amount.",
	"SIS0019": "Error de formato en Ds_Merchant_Amount.",
	"SIS0020": "Error falta Ds_Merchant_MerchantSignature.",
	"SIS0021": "Error la Ds_Merchant_MerchantSignature viene vacía.",
	"SIS0022": "Error de formato en Ds_Merchant_TransactionType.",
	"SIS0023": "Error Ds_Merchant_TransactionType desconocido.",
	"SIS0024": "Error Ds_Merchant_ConsumerLanguage tiene mas de 3 posiciones.",
	"SIS0025": "Error de formato en Ds_Merchant_ConsumerLanguage.",
	"SIS0026": "Error No existe el comercio / terminal enviado.",
	"SIS0027": "Error Moneda enviada por el comercio es diferente a la que tiene asignada para ese terminal.",
	"SIS0028": "Error Comercio / terminal está dado de baja.",
	"SIS0030": "Error en un pago con tarjeta ha llegado un tipo de operación no valido.",
	"SIS0031": "Método de pago no definido.",
	"SIS0033": "Error en un pago con móvil ha llegado un tipo de operación que no es ni pago ni preautorización.",
	"SIS0034": "Error de acceso a la Base de Datos.",
	"SIS0037": "El número de teléfono no es válido.",
	"SIS0038": "Error en java.",
	"SIS0040": "Error el comercio / terminal no tiene ningún método de pago asignado.",
	"SIS0041": "Error en el cálculo de la firma de datos del comercio.",
	"SIS0042": "La firma enviada no es correcta.",
	"SIS0043": "Error al realizar la notificación on-line.",
	"SIS0046": "El BIN de la tarjeta no está dado de alta.",
	"SIS0051": "Error número de pedido repetido.",
	"SIS0054": "Error no existe operación sobre la que realizar la devolución.",
	"SIS0055": "Error no existe más de un pago con el mismo número de pedido.",
	"SIS0056": "La operación sobre la que se desea devolver no está autorizada.",
	"SIS0057": "El importe a devolver supera el permitido.",
	"SIS0058": "Inconsistencia de datos, en la validación de una confirmación.",
	"SIS0059": "Error no existe operación sobre la que realizar la devolución.",
	"SIS0060": "Ya existe una confirmación asociada a la preautorización.",
	"SIS0061": "La preautorización sobre la que se desea confirmar no está autorizada.",
	"SIS0062": "El importe a confirmar supera el permitido.",
	"SIS0063": "Error. Número de tarjeta no disponible.",
	"SIS0064": "Error. El número de tarjeta no puede tener más de 19 posiciones.",
	"SIS0065": "Error. El número de tarjeta no es numérico.",
	"SIS0066": "Error. Mes de caducidad no disponible.",
	"SIS0067": "Error. El mes de la caducidad no es numérico.",
	"SIS0068": "Error. El mes de la caducidad no es válido.",
	"SIS0069": "Error. Año de caducidad no disponible.",
	"SIS0070": "Error. El Año de la caducidad no es numérico.",
	"SIS0071": "Tarjeta caducada.",
	"SIS0072": "Operación no anulable.",
	"SIS0074": "Error falta Ds_Merchant_Order.",
	"SIS0075": "Error el Ds_Merchant_Order tiene menos de 4 posiciones o más de 12.",
	"SIS0076": "Error el Ds_Merchant_Order no tiene las cuatro primeras posiciones numéricas.",
	"SIS0078": "Método de pago no disponible.",
	"SIS0079": "Error al realizar el pago con tarjeta.",
	"SIS0081": "La sesión es nueva, se han perdido los datos almacenados.",
	"SIS0084": "El valor de Ds_Merchant_Conciliation es nulo.",
	"SIS0085": "El valor de Ds_Merchant_Conciliation no es numérico.",
	"SIS0086": "El valor de Ds_Merchant_Conciliation no ocupa 6 posiciones.",
	"SIS0089": "El valor de Ds_Merchant_ExpiryDate no ocupa 4 posiciones.",
	"SIS0092": "El valor de Ds_Merchant_ExpiryDate es nulo.",
	"SIS0093": "Tarjeta no encontrada en la tabla de rangos.",
	"SIS0094": "La tarjeta no fue autenticada como 3D Secure.",
	"SIS0097": "Valor del campo Ds_Merchant_CComercio no válido.",
	"SIS0098": "Valor del campo Ds_Merchant_CVentana no válido.",
	"SIS0112": "Error. El tipo de transacción especificado en Ds_Merchant_Transaction_Type no esta permitido.",
	"SIS0113": "Excepción producida en el servlet de operaciones.",
	"SIS0114": "Error, se ha llamado con un GET en lugar de un POST.",
	"SIS0115": "Error no existe operación sobre la que realizar el pago de la cuota.",
	"SIS0116": "La operación sobre la que se desea pagar una cuota no es una operación válida.",
	"SIS0117": "La operación sobre la que se desea pagar una cuota no está autorizada.",
	"SIS0118": "Se ha excedido el importe total de las cuotas.",
	"SIS0119": "Valor del campo Ds_Merchant_DateFrecuency no válido.",
	"SIS0120": "Valor del campo Ds_Merchant_CargeExpiryDate no válido.",
	"SIS0121": "Valor del campo Ds_Merchant_SumTotal no válido.",
	"SIS0122": "Valor del campo Ds_merchant_DateFrecuency o Ds_Merchant_SumTotal tiene formato incorrecto.",
	"SIS0123": "Se ha excedido la fecha tope para realizar transacciones.",
	"SIS0124": "No ha transcurrido la frecuencia mínima en un pago recurrente sucesivo.",
	"SIS0132": "La fecha de Confirmación de Autorización no puede superar en más de 7 días a la de Preautorización.",
	"SIS0133": "La fecha de Confirmación de Autenticación no puede superar en mas de 45 días a la de Autenticación Previa.",
	"SIS0139": "Error el pago recurrente inicial está duplicado.",
	"SIS0142": "Tiempo excedido para el pago.",
	"SIS0197": "Error al obtener los datos de cesta de la compra en operación tipo pasarela.",
	"SIS0198": "Error el importe supera el límite permitido para el comercio.",
	"SIS0199": "Error el número de operaciones supera el límite permitido para el comercio.",
	"SIS0200": "Error el importe acumulado supera el límite permitido para el comercio.",
	"SIS0214": "El comercio no admite devoluciones.",
	"SIS0216": "Error Ds_Merchant_CVV2 tiene mas de 3/4 posiciones.",
	"SIS0217": "Error de formato en Ds_Merchant_CVV2.",
	"SIS0218": "El comercio no permite operaciones seguras por la entrada /operaciones.",
	"SIS0219": "Error el número de operaciones de la tarjeta supera el límite permitido para el comercio.",
	"SIS0220": "Error el importe acumulado de la tarjeta supera el límite permitido para el comercio.",
	"SIS0221": "Error el CVV2 es obligatorio.",
	"SIS0222": "Ya existe una anulación asociada a la preautorización.",
	"SIS0223": "La preautorización que se desea anular no está autorizada.",
	"SIS0224": "El comercio no permite anulaciones por no tener firma ampliada.",
	"SIS0225": "Error no existe operación sobre la que realizar la anulación.",
	"SIS0226": "Inconsistencia de datos, en la validación de una anulación.",
	"SIS0227": "Valor del campo Ds_Merchan_TransactionDate no válido.",
	"SIS0229": "No existe el código de pago aplazado solicitado.",
	"SIS0252": "El comercio no permite el envío de tarjeta.",
	"SIS0253": "La tarjeta no cumple el check-digit.",
	"SIS0254": "El número de operaciones de la IP supera el límite permitido por el comercio.",
	"SIS0255": "El importe acumulado por la IP supera el límite permitido por el comercio.",
	"SIS0256": "El comercio no puede realizar preautorizaciones.",
	"SIS0257": "Esta tarjeta no permite operativa de preautorizaciones.",
	"SIS0258": "Inconsistencia de datos, en la validación de una confirmación.",
	"SIS0261": "Operación detenida por superar el control de restricciones en la entrada al SIS.",
	"SIS0270": "El comercio no puede realizar autorizaciones en diferido.",
	"SIS0274": "Tipo de operación desconocida o no permitida por esta entrada al SIS.",
	"SIS0298": "El comercio no permite realizar operaciones de Tarjeta en Archivo.",
	"SIS0319": "El comercio no pertenece al grupo especificado en Ds_Merchant_Group.",
	"SIS0321": "La referencia indicada en Ds_Merchant_Identifier no está asociada al comercio.",
	"SIS0322": "Error de formato en Ds_Merchant_Group.",
	"SIS0325": "Se ha pedido no mostrar pantallas pero no se ha enviado ninguna referencia de tarjeta.",
	"SIS0334": "Superado los límites de compra con esta tarjeta o IP (ver parámetros en Redsys). [Velocity checks]",
	"SIS0429": "Error en la versión enviada por el comercio en el parámetro Ds_SignatureVersion",
	"SIS0430": "Error al decodificar el parámetro Ds_MerchantParameters",
	"SIS0431": "Error del objeto JSON que se envía codificado en el parámetro Ds_MerchantParameters",
	"SIS0432": "Error FUC del comercio erróneo",
	"SIS0433": "Error Terminal del comercio erróneo",
	"SIS0434": "Error ausencia de número de pedido en la operación enviada por el comercio",
	"SIS0435": "Error en el cálculo de la firma",
}

// RedsysError resolves a SIS response code to its description. Codes arrive
// in inconsistent shapes, so the bare code, its SIS-prefixed form and its
// unprefixed form are all tried before giving up.
func RedsysError(code string) string {
	if msg, ok := sisErrors[code]; ok {
		return msg
	}
	if msg, ok := sisErrors["SIS"+code]; ok {
		return msg
	}
	if msg, ok := sisErrors[strings.ReplaceAll(code, "SIS", "")]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN CODE %s", code)
}

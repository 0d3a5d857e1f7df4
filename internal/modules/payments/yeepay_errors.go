package payments

import "fmt"

// yeepayErrors maps Yeepay retCode values to the official descriptions, as
// published by Yeepay (in Chinese).
var yeepayErrors = map[string]string{
	"1120": "超过失败次数限制",
	"1123": "该卡已过期",
	"1117": "未找到可用通道，请换卡重试",
	"1116": "您的账号需要在银行签约，请重新发起交易",
	"0001": "交易失败，请稍后重试",
	"9001": "请求重复,请稍候重试",
	"1077": "绑卡需要加验和验证码",
	"1078": "未查到对应卡信息",
	"1098": "系统异常，请联系易宝支付",
	"1080": "交易失败，请稍后重试",
	"1081": "商户尚未开通此银行业务",
	"1082": "银行系统维护中，请稍后重试",
	"1083": "发卡行不允许此卡交易，请联系发卡行",
	"1084": "请拨打建行95533客服电话，接通后按#058核实交易，核实成功后可重新进行支付",
	"1085": "请拨打建行95533客服电话，接通后按#058进行交易核实，核实成功后方能重新进行支付交易",
	"1086": "卡片有效期错误，请核对后重试",
	"1087": "银行预留手机号变更，绑卡关系无效",
	"1088": "该卡未开通电子支付功能或卡信息有误",
	"1089": "短信验证码发送失败",
	"1090": "该笔交易金额低于银行规定最低限额，请换卡支付",
	"1091": "缺少必要的银行卡信息",
	"1092": "超过银行交易金额限制",
	"1093": "交易金额超限",
	"1094": "可用余额不足",
	"1095": "发卡行不允许此卡交易",
	"1096": "银行系统异常，请稍后重试",
	"1097": "无效卡号，请核对后重新输入",
	"1099": "卡信息输入错误次数超限，请联系发卡行解锁",
	"1100": "密码有误，请确认后重新提交交易",
	"1101": "持卡人证件信息有误，请确认后重新提交交易",
	"1102": "银行卡开户姓名有误，请确认后重新提交交易",
	"1103": "卡信息有误，请核对后重试",
	"1104": "银行系统异常，请稍后重试",
	"1105": "重复交易，请稍后重试",
	"1106": "该卡不在该银行无卡支付业务范围内，请持卡人联系发卡行",
	"1107": "银行预留手机号有误，请确认后重新提交交易",
	"1001": "原交易订单不存在",
	"1002": "订单已存在",
	"1003": "创建订单异常",
	"1004": "交易订单状态错误",
	"1005": "交易订单已超时取消",
	"1006": "订单支付信息不存在",
	"1007": "订单支付状态异常",
	"1008": "订单金额错误",
	"1009": "订单入账状态异常",
	"1010": "订单未入账",
	"1011": "订单入账记录已经存在",
	"1020": "商户未开通产品",
	"1021": "订单状态未同步",
	"1022": "银行卡无对应卡bin",
	"1023": "不支持的卡种",
	"1024": "计费模版不存在",
	"1025": "由易宝下发短验",
	"1026": "由商户下发短验",
	"1027": "由银行下发短验",
	"1028": "支付处理中",
	"1029": "原始请求数据为空",
	"1030": "验证处理中",
	"1031": "恢复原始请求数据异常",
	"1032": "验证码发送次数超限",
	"1033": "验证码验证错误",
	"1034": "验证码超过重试次数",
	"1035": "验证码已失效",
	"1038": "订单类型错误",
	"1039": "查询清算结果为空",
	"1040": "分账金额大于等于订单金额",
	"1041": "分账订单号请求重复",
	"1042": "子分账方数量超限",
	"1043": "收款方入账订单状态异常",
	"1044": "未配置商户计费信息",
	"1045": "未配置商户场景",
	"1046": "未配置商户银行验证要素",
	"1047": "缺少必填要素",
	"1048": "短验发送失败",
	"1049": "订单已支付成功",
	"1050": "支付信息已存在",
	"1051": "验证码验证方式错误",
	"1052": "未查询到绑卡记录",
	"1053": "绑卡ID超时",
	"1054": "绑卡需要加验",
	"1055": "绑卡已经成功",
	"1056": "绑卡失败请发起新的请求",
	"1057": "绑卡验证中",
	"1058": "订单已终态请以查询结果为准",
	"1059": "传入绑卡ID不存在",
	"1060": "收款方异步通知地址为空",
	"1067": "付款方未开通会员支付",
	"1068": "预授权请求处理中",
	"1069": "预授权完成金额大于发起金额",
	"1070": "订单已经预授权完成",
	"1071": "订单已经预授权取消",
	"1072": "订单已经预授权发起成功",
	"1073": "订单未支付",
	"1079": "订单未支付成功",
	"1108": "黑名单阻断",
	"1109": "交易限额，超过商户单笔交易限额",
	"1110": "交易限额，超过商户日累计交易限额",
	"1111": "交易限额，超过商户月累计交易限额",
	"1112": "交易限额，超过商户日累计交易次数",
	"1113": "交易限额，超过商户月累计交易次数",
	"1115": "交易拦截--规则系统，超过交易限次",
}

// YeepayError resolves a retCode to its description.
func YeepayError(code string) string {
	if msg, ok := yeepayErrors[code]; ok {
		return msg
	}
	return fmt.Sprintf("未知的错误代码 %s", code)
}

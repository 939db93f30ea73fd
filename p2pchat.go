package p2pchat

// Version 当前版本
const Version = "0.3.0"
